package domain

import "time"

// Profile is the orchestrator's read-only view of a user's linked external
// profile. Jobs for users without one cannot succeed and fail validation.
type Profile struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Handle         string    `json:"handle"`
	HasCredentials bool      `json:"has_credentials"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContentItem is a raw fetched item as handed to the store collaborator.
// Items are keyed by (profile, content type, item id); storing an item twice
// is a no-op.
type ContentItem struct {
	ItemID         string      `json:"item_id"`
	ProfileID      string      `json:"profile_id"`
	ContentType    ContentType `json:"content_type"`
	ProcessingDate time.Time   `json:"processing_date"`
	Payload        []byte      `json:"payload"`
}
