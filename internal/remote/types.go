package remote

import (
	"encoding/json"
	"time"
)

// Part is one element of a conversation turn. The wire carries either a bare
// string (text) or an object (an inline image in the model API's format);
// the union is resolved here so nothing downstream sees the raw shape.
type Part struct {
	Text    string
	IsImage bool
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		p.Text = text
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		// Object parts are image attachments in every payload the
		// service has ever produced.
		p.IsImage = true
		return nil
	}

	// Anything else (number, bool) keeps its literal text.
	p.Text = string(data)
	return nil
}

// Turn is one entry of a conversation's history, tagged with the role that
// produced it ("user" or "model").
type Turn struct {
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RecipeContext is the recipe payload attached to a remote conversation.
// Ingredients stay untyped here; the domain normalizer is the single
// coercion point. Tips have carried two field names over time.
type RecipeContext struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Ingredients    []any    `json:"ingredients"`
	Instructions   []string `json:"instructions"`
	PrepTime       any      `json:"prep_time"`
	CookTime       any      `json:"cook_time"`
	Servings       int      `json:"servings"`
	Difficulty     string   `json:"difficulty"`
	TipsVariations []string `json:"tips_variations"`
	Variations     []string `json:"variations"`
}

// Conversation is a server-held conversation fetched by identifier.
type Conversation struct {
	SessionID     string         `json:"session_id"`
	History       []Turn         `json:"messages_history"`
	RecipeContext *RecipeContext `json:"recipe_context"`
}

// Reply is the assistant's answer to a sent message.
type Reply struct {
	MessageID string         `json:"message_id"`
	Response  string         `json:"response"`
	Recipe    *RecipeContext `json:"recipe"`
}
