package models

import (
	"encoding/json"
	"time"
)

// Notification is a single fetched or pushed alert. ID is empty for pushes
// the server has not assigned an id to yet.
type Notification struct {
	ID        FlexID    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	var raw struct {
		alias
		MongoID FlexID `json:"_id"`
		IsRead  *bool  `json:"isRead"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Notification(raw.alias)
	n.ID = FirstID(n.ID, raw.MongoID)
	if raw.IsRead != nil {
		n.Read = *raw.IsRead
	}
	return nil
}
