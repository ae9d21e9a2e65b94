package models

import "time"

// User is the profile slice the relay needs for the chat list. Registration,
// login and public-key management live in a separate service.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// ChatPreview is one row of a viewer's conversations list.
type ChatPreview struct {
	PartnerID            string    `json:"partnerId"`
	Username             string    `json:"username"`
	UnreadCount          int64     `json:"unreadCount"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
}
