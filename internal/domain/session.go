package domain

import (
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// DeliveryStatus tracks whether a message made it to the remote service.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusError     DeliveryStatus = "error"
)

// SessionTTL is the fixed lifetime of a session record. ExpiresAt is always
// CreatedAt + SessionTTL; nothing extends it.
const SessionTTL = 24 * time.Hour

// Message is a single conversation turn. Messages are append-only: a later
// message never edits an earlier one, and ordering is conversation order,
// oldest first.
type Message struct {
	ID             string         `json:"id"`
	Sender         Sender         `json:"sender"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
}

// ImageAnalysis holds the raw output of the most recent photo analysis,
// retained so a first-visit welcome message can be synthesized without
// re-calling the analysis step.
type ImageAnalysis struct {
	Ingredients  []string `json:"ingredients"`
	Observations string   `json:"observations,omitempty"`
}

// Refinement captures a free-text refinement request made before a full chat
// session exists.
type Refinement struct {
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	Recipe    *RecipeSnapshot `json:"recipe,omitempty"`
}

// SessionRecord is the unit of persistence: one evolving conversation with
// its current recipe artifact. Exactly one record is active per subject at a
// time; there is no multi-session index.
type SessionRecord struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Ingredients   []string        `json:"ingredients"`
	Messages      []Message       `json:"messages"`
	CurrentRecipe *RecipeSnapshot `json:"currentRecipe,omitempty"`
	ImageAnalysis *ImageAnalysis  `json:"imageAnalysis,omitempty"`
	Refinements   []Refinement    `json:"refinements,omitempty"`
}

// Expired reports whether the record is past its lifetime at the given
// instant. A record read at or after ExpiresAt is treated as absent.
func (r *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
