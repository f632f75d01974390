package api

import (
	"context"
	"net/http"
	"net/url"

	"opdportal/models"
)

func (c *Client) CreateBooking(ctx context.Context, in models.BookingRequest) (models.Appointment, error) {
	var out models.Appointment
	if err := c.call(ctx, http.MethodPost, "/api/opd/book", in, &out, "appointment", "data"); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}

func (c *Client) MyAppointments(ctx context.Context) ([]models.Appointment, error) {
	var out []models.Appointment
	if err := c.call(ctx, http.MethodGet, "/api/opd/my-appointments", nil, &out, "appointments", "data"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	var out models.Appointment
	if err := c.call(ctx, http.MethodGet, "/api/opd/appointments/"+url.PathEscape(id), nil, &out, "appointment", "data"); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (models.Appointment, error) {
	var out models.Appointment
	path := "/api/opd/appointments/" + url.PathEscape(id) + "/cancel"
	if err := c.call(ctx, http.MethodPut, path, models.CancelRequest{Reason: reason}, &out, "appointment", "data"); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}
