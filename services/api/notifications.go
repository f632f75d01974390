package api

import (
	"context"
	"net/http"
	"net/url"

	"opdportal/models"
)

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.call(ctx, http.MethodGet, "/api/notifications", nil, &out, "notifications", "data"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}
