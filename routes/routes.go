package routes

import (
	"time"

	"opdportal/handlers"
	"opdportal/middleware"
	"opdportal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers login, registration, logout and the session
// snapshot. None of them is guarded.
func RegisterSessionRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/session")
	{
		api.GET("", hb.AuthHandler.GetSessionHandler)
		api.POST("/refetch", hb.AuthHandler.RefetchSessionHandler)
		api.POST("/login", hb.AuthHandler.LoginHandler)
		api.POST("/register", hb.AuthHandler.RegisterHandler)
		api.POST("/logout", hb.AuthHandler.LogoutHandler)
	}
}

// RegisterDirectoryRoutes registers the hospital directory.
func RegisterDirectoryRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/hospitals")
	{
		api.Use(middleware.RequireSession(hb.Session, hb.Landing))
		api.GET("", hb.Directory.ListHospitalsHandler)
		api.GET("/:id", hb.Directory.GetHospitalHandler)
		api.GET("/:id/doctors", hb.Directory.ListDoctorsHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints of the booking wizard. Only
// patients may book.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	wizard := r.Group("/api/wizard")
	{
		wizard.Use(middleware.RequireSession(hb.Session, hb.Landing, models.RolePatient))
		wizard.GET("", hb.Booking.GetWizardHandler)
		wizard.POST("/hospitals/load", hb.Booking.LoadHospitalsHandler)
		wizard.POST("/hospital", hb.Booking.SelectHospitalHandler)
		wizard.POST("/department", hb.Booking.SelectDepartmentHandler)
		wizard.POST("/doctor", hb.Booking.SelectDoctorHandler)
		wizard.POST("/schedule", hb.Booking.SelectScheduleHandler)
		wizard.POST("/next", hb.Booking.NextHandler)
		wizard.POST("/previous", hb.Booking.PreviousHandler)
		wizard.POST("/submit", hb.Booking.SubmitHandler)
		wizard.POST("/change-date", hb.Booking.ChangeDateHandler)
		wizard.POST("/reset", hb.Booking.ResetHandler)
	}
}

// RegisterAppointmentRoutes registers the patient's existing bookings.
func RegisterAppointmentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/appointments")
	{
		api.Use(middleware.RequireSession(hb.Session, hb.Landing, models.RolePatient))
		api.GET("", hb.Appointments.ListMyAppointmentsHandler)
		api.GET("/:id", hb.Appointments.GetAppointmentHandler)
		api.PUT("/:id/cancel", hb.Appointments.CancelAppointmentHandler)
	}
}

// RegisterLiveRoutes registers notifications, crowd data and the live stream.
func RegisterLiveRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.Use(middleware.RequireSession(hb.Session, hb.Landing))
		api.GET("/notifications", hb.Notifications.ListHandler)
		api.POST("/notifications/refresh", hb.Notifications.RefreshHandler)
		api.POST("/notifications/read-all", hb.Notifications.MarkAllReadHandler)
		api.GET("/crowd", hb.Crowd.SnapshotHandler)
		api.GET("/crowd/:id", hb.Crowd.GetHandler)
		api.GET("/live", hb.Live.StreamHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Location", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterSessionRoutes(r, hb)
	RegisterDirectoryRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterAppointmentRoutes(r, hb)
	RegisterLiveRoutes(r, hb)
	RegisterHealthRoute(r)
}
