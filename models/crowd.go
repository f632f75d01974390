package models

import (
	"strings"
	"time"
)

// CrowdLevel is the coarse load of a facility or doctor, computed server-side.
type CrowdLevel string

const (
	CrowdLow    CrowdLevel = "LOW"
	CrowdMedium CrowdLevel = "MEDIUM"
	CrowdHigh   CrowdLevel = "HIGH"
)

// ParseCrowdLevel upper-cases the level; unknown values are kept verbatim.
func ParseCrowdLevel(raw string) CrowdLevel {
	return CrowdLevel(strings.ToUpper(strings.TrimSpace(raw)))
}

// CrowdUpdate is the payload of a crowd-update push event.
type CrowdUpdate struct {
	HospitalID FlexID `json:"hospitalId"`
	DoctorID   FlexID `json:"doctorId"`
	ID         FlexID `json:"id"`
	Level      string `json:"level"`
	CrowdLevel string `json:"crowdLevel"`
	Color      string `json:"color"`
	WaitTime   string `json:"waitTime"`
}

// Key is the normalized string identifier of the update.
func (u CrowdUpdate) Key() string {
	return FirstID(u.HospitalID, u.DoctorID, u.ID).String()
}

// CrowdEntry is the live occupancy estimate for one facility or doctor.
type CrowdEntry struct {
	Key       string     `json:"key"`
	Level     CrowdLevel `json:"level"`
	Color     string     `json:"color"`
	WaitTime  string     `json:"waitTime"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
