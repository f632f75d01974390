package models

import "encoding/json"

// Hospital is a directory entry.
type Hospital struct {
	ID          FlexID   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Departments []string `json:"departments"`
}

func (h *Hospital) UnmarshalJSON(data []byte) error {
	type alias Hospital
	var raw struct {
		alias
		MongoID FlexID `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = Hospital(raw.alias)
	h.ID = FirstID(h.ID, raw.MongoID)
	if h.ID.Empty() {
		return errMissingID("hospital")
	}
	return nil
}

// Doctor is a directory entry scoped to one hospital.
type Doctor struct {
	ID              FlexID   `json:"id"`
	Name            string   `json:"name"`
	HospitalID      FlexID   `json:"hospitalId,omitempty"`
	Department      string   `json:"department"`
	Specialization  string   `json:"specialization,omitempty"`
	Qualification   string   `json:"qualification,omitempty"`
	Experience      int      `json:"experience,omitempty"`
	ConsultationFee float64  `json:"consultationFee"`
	AvailableSlots  []string `json:"availableSlots,omitempty"`
}

func (d *Doctor) UnmarshalJSON(data []byte) error {
	type alias Doctor
	var raw struct {
		alias
		MongoID FlexID `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Doctor(raw.alias)
	d.ID = FirstID(d.ID, raw.MongoID)
	if d.ID.Empty() {
		return errMissingID("doctor")
	}
	return nil
}
