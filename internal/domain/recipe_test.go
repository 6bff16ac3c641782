package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIngredient(t *testing.T) {
	t.Run("bare string", func(t *testing.T) {
		got := NormalizeIngredient("2 eggs")
		assert.Equal(t, Ingredient{Name: "2 eggs"}, got)
	})

	t.Run("structured map", func(t *testing.T) {
		got := NormalizeIngredient(map[string]any{
			"name":        "flour",
			"quantity":    "200g",
			"preparation": "sifted",
		})
		assert.Equal(t, Ingredient{Name: "flour", Quantity: "200g", Preparation: "sifted"}, got)
	})

	t.Run("map without quantity", func(t *testing.T) {
		got := NormalizeIngredient(map[string]any{"name": "salt"})
		assert.Equal(t, Ingredient{Name: "salt"}, got)
	})

	t.Run("numeric quantity loses trailing zero", func(t *testing.T) {
		got := NormalizeIngredient(map[string]any{"name": "eggs", "quantity": float64(2)})
		assert.Equal(t, "2", got.Quantity)
	})

	t.Run("fractional quantity kept as-is", func(t *testing.T) {
		got := NormalizeIngredient(map[string]any{"name": "milk", "quantity": 1.5})
		assert.Equal(t, "1.5", got.Quantity)
	})

	t.Run("already canonical passes through", func(t *testing.T) {
		in := Ingredient{Name: "butter", Quantity: "50g", Preparation: "melted"}
		assert.Equal(t, in, NormalizeIngredient(in))
	})

	t.Run("nil pointer", func(t *testing.T) {
		var p *Ingredient
		assert.Equal(t, Ingredient{}, NormalizeIngredient(p))
	})

	t.Run("arbitrary value stringified", func(t *testing.T) {
		assert.Equal(t, Ingredient{Name: "42"}, NormalizeIngredient(float64(42)))
		assert.Equal(t, Ingredient{Name: "true"}, NormalizeIngredient(true))
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []any{
			"2 eggs",
			map[string]any{"name": "flour", "quantity": "200g"},
			float64(7),
			nil,
		}
		for _, in := range inputs {
			once := NormalizeIngredient(in)
			twice := NormalizeIngredient(once)
			assert.Equal(t, once, twice)
		}
	})
}

func TestNormalizeIngredients(t *testing.T) {
	t.Run("nil input yields empty slice", func(t *testing.T) {
		got := NormalizeIngredients(nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("mixed shapes", func(t *testing.T) {
		got := NormalizeIngredients([]any{
			"2 eggs",
			map[string]any{"name": "flour", "quantity": "200g"},
		})
		assert.Equal(t, []Ingredient{
			{Name: "2 eggs"},
			{Name: "flour", Quantity: "200g"},
		}, got)
	})
}

func TestStringify(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"string passthrough", "15 min", "15 min"},
		{"nil", nil, ""},
		{"integral float", float64(10), "10"},
		{"fractional float", 1.5, "1.5"},
		{"bool", true, "true"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Stringify(tc.in))
		})
	}
}

func TestIngredient_UnmarshalJSON(t *testing.T) {
	raw := `["2 eggs", {"name":"flour","quantity":"200g"}, {"name":"salt","quantity":2}]`

	var got []Ingredient
	err := json.Unmarshal([]byte(raw), &got)
	assert.NoError(t, err)
	assert.Equal(t, []Ingredient{
		{Name: "2 eggs"},
		{Name: "flour", Quantity: "200g"},
		{Name: "salt", Quantity: "2"},
	}, got)
}
