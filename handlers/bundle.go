package handlers

import (
	"opdportal/middleware"
)

// HandlerBundle groups all endpoint handlers and the guard inputs into one
// struct.
type HandlerBundle struct {
	Session       SessionService
	Landing       middleware.Landing
	AuthHandler   *SessionHandler
	Directory     *DirectoryHandler
	Booking       *BookingHandler
	Appointments  *AppointmentsHandler
	Notifications *NotificationHandler
	Crowd         *CrowdHandler
	Live          *LiveHub
}
