package models

import (
	"encoding/json"
	"fmt"
)

// AppointmentStatus is the server-driven lifecycle of a booking.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Cancellable reports whether the client may still request a cancellation.
func (s AppointmentStatus) Cancellable() bool {
	return s == StatusBooked || s == StatusConfirmed
}

// Fees is the fee breakdown of an OPD booking.
type Fees struct {
	RegistrationFee float64 `json:"registrationFee"`
	ConsultationFee float64 `json:"consultationFee"`
	TotalAmount     float64 `json:"totalAmount"`
}

// NewFees builds a breakdown whose total is the sum of both parts.
func NewFees(registration, consultation float64) Fees {
	return Fees{
		RegistrationFee: registration,
		ConsultationFee: consultation,
		TotalAmount:     registration + consultation,
	}
}

// PatientDetails is the fixed-shape patient sub-object of a booking.
type PatientDetails struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Phone  string `json:"phone"`
}

// BookingRequest is the composite request submitted at the confirm step.
type BookingRequest struct {
	HospitalID      FlexID         `json:"hospitalId"`
	DoctorID        FlexID         `json:"doctorId"`
	Department      string         `json:"department"`
	AppointmentDate string         `json:"appointmentDate"`
	TimeSlot        string         `json:"timeSlot"`
	Patient         PatientDetails `json:"patientDetails"`
	Fees            Fees           `json:"fees"`
}

// Appointment is the client's read projection of a server-owned booking.
type Appointment struct {
	ID              FlexID            `json:"id"`
	HospitalID      FlexID            `json:"hospitalId"`
	HospitalName    string            `json:"hospitalName,omitempty"`
	DoctorID        FlexID            `json:"doctorId"`
	DoctorName      string            `json:"doctorName,omitempty"`
	Department      string            `json:"department,omitempty"`
	AppointmentDate string            `json:"appointmentDate"`
	TimeSlot        string            `json:"timeSlot"`
	TokenNumber     *int              `json:"tokenNumber,omitempty"`
	Status          AppointmentStatus `json:"status"`
	Fees            Fees              `json:"fees"`
	Patient         *PatientDetails   `json:"patientDetails,omitempty"`
	CancelReason    string            `json:"cancelReason,omitempty"`
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	type alias Appointment
	var raw struct {
		alias
		MongoID FlexID `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Appointment(raw.alias)
	a.ID = FirstID(a.ID, raw.MongoID)
	if a.ID.Empty() {
		return errMissingID("appointment")
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if !a.Status.Valid() {
		return &DecodeError{Kind: "appointment", Reason: fmt.Sprintf("unknown status %q", a.Status)}
	}
	return nil
}

// CancelRequest carries the reason for a cancellation.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}
