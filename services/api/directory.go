package api

import (
	"context"
	"net/http"
	"net/url"

	"opdportal/models"
)

func (c *Client) ListHospitals(ctx context.Context) ([]models.Hospital, error) {
	var out []models.Hospital
	if err := c.call(ctx, http.MethodGet, "/api/hospitals", nil, &out, "hospitals", "data"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetHospital(ctx context.Context, id string) (models.Hospital, error) {
	var out models.Hospital
	if err := c.call(ctx, http.MethodGet, "/api/hospitals/"+url.PathEscape(id), nil, &out, "hospital", "data"); err != nil {
		return models.Hospital{}, err
	}
	return out, nil
}

// ListDoctors lists the doctors of a hospital, filtered to a department when
// one is given.
func (c *Client) ListDoctors(ctx context.Context, hospitalID, department string) ([]models.Doctor, error) {
	path := "/api/hospitals/" + url.PathEscape(hospitalID) + "/doctors"
	if department != "" {
		path += "?" + url.Values{"department": {department}}.Encode()
	}
	var out []models.Doctor
	if err := c.call(ctx, http.MethodGet, path, nil, &out, "doctors", "data"); err != nil {
		return nil, err
	}
	return out, nil
}
