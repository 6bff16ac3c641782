package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ingredient is the canonical structured shape for a recipe ingredient. The
// remote service and older payloads disagree on representation (bare string,
// structured object, or arbitrary value); every path that stores or renders a
// recipe coerces through NormalizeIngredient first.
type Ingredient struct {
	Name        string `json:"name"`
	Quantity    string `json:"quantity"`
	Preparation string `json:"preparation,omitempty"`
}

// UnmarshalJSON accepts any of the historical ingredient shapes and folds
// them into the canonical one, so the untyped wire shape never leaks past the
// deserialization boundary.
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = NormalizeIngredient(raw)
	return nil
}

// RecipeSnapshot is the denormalized recipe payload shown to the user: the
// latest generated or refined recipe for the active session.
type RecipeSnapshot struct {
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	PrepTime     string       `json:"prepTime,omitempty"`
	CookTime     string       `json:"cookTime,omitempty"`
	Servings     int          `json:"servings,omitempty"`
	Difficulty   string       `json:"difficulty,omitempty"`
	Tips         []string     `json:"tips,omitempty"`
	CreatedAt    time.Time    `json:"createdAt,omitempty"`
}

// NormalizeIngredient coerces a heterogeneous ingredient representation into
// the canonical structured shape. It is pure, total, and idempotent:
// normalizing an already-normalized value is a no-op.
func NormalizeIngredient(raw any) Ingredient {
	switch v := raw.(type) {
	case string:
		return Ingredient{Name: v, Quantity: ""}
	case Ingredient:
		return v
	case *Ingredient:
		if v == nil {
			return Ingredient{Name: "", Quantity: ""}
		}
		return *v
	case map[string]any:
		name, ok := v["name"]
		if !ok {
			return Ingredient{Name: Stringify(v), Quantity: ""}
		}
		ing := Ingredient{Name: Stringify(name), Quantity: ""}
		if q, ok := v["quantity"]; ok && q != nil {
			ing.Quantity = Stringify(q)
		}
		if p, ok := v["preparation"]; ok && p != nil {
			ing.Preparation = Stringify(p)
		}
		return ing
	default:
		return Ingredient{Name: Stringify(raw), Quantity: ""}
	}
}

// NormalizeIngredients maps a raw ingredient list into canonical form.
// A nil input yields an empty, non-nil slice.
func NormalizeIngredients(raw []any) []Ingredient {
	out := make([]Ingredient, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeIngredient(r))
	}
	return out
}

// Stringify renders an untyped wire value as text. It is the one place that
// decides how loose payload fields (quantities, prep/cook times) become
// strings.
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing ".0" to match the upstream wire text.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
