package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationPriority ranks urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification channels.
const (
	ChannelInApp    = "in-app"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Notification is an in-app message, optionally fanned out to external channels.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	RecipientID string               `db:"recipient_id" json:"recipientId"`
	Title       string               `db:"title" json:"title"`
	Message     string               `db:"message" json:"message"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	Channels    pq.StringArray       `db:"channels" json:"channels"`
	ReadAt      *time.Time           `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"createdAt"`
}
