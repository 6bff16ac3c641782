package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reciperag/session-cache/internal/domain"
)

// Encode serializes a session record to the flat string persisted by the
// storage providers. Timestamps travel as RFC 3339 text. Encode is total for
// any well-formed record.
func Encode(rec *domain.SessionRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("session: encode failed: %w", err)
	}
	return string(data), nil
}

// sessionWire keeps collection fields raw so a value of the wrong shape
// degrades to an empty list instead of failing the whole record.
type sessionWire struct {
	ID            string                 `json:"id"`
	CreatedAt     time.Time              `json:"createdAt"`
	ExpiresAt     time.Time              `json:"expiresAt"`
	Ingredients   json.RawMessage        `json:"ingredients"`
	Messages      json.RawMessage        `json:"messages"`
	CurrentRecipe *domain.RecipeSnapshot `json:"currentRecipe"`
	ImageAnalysis *domain.ImageAnalysis  `json:"imageAnalysis"`
	Refinements   json.RawMessage        `json:"refinements"`
}

// Decode is the inverse of Encode. It returns a *DecodeError when raw is not
// valid serialized data or lacks the id/createdAt/expiresAt triple; callers
// treat that the same as "no session". Collection fields that are absent or
// not arrays decode to empty slices.
func Decode(raw string) (*domain.SessionRecord, error) {
	var wire sessionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if wire.ID == "" {
		return nil, &DecodeError{Reason: "missing id"}
	}
	if wire.CreatedAt.IsZero() || wire.ExpiresAt.IsZero() {
		return nil, &DecodeError{Reason: "missing createdAt/expiresAt"}
	}

	return &domain.SessionRecord{
		ID:            wire.ID,
		CreatedAt:     wire.CreatedAt,
		ExpiresAt:     wire.ExpiresAt,
		Ingredients:   decodeList[string](wire.Ingredients),
		Messages:      decodeList[domain.Message](wire.Messages),
		CurrentRecipe: wire.CurrentRecipe,
		ImageAnalysis: wire.ImageAnalysis,
		Refinements:   decodeList[domain.Refinement](wire.Refinements),
	}, nil
}

func decodeList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}
