package domain

import "time"

// Notification is an outbound message handed to the delivery channel.
type Notification struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
