package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

func argString(p graphql.ResolveParams, name string) string {
	s, _ := p.Args[name].(string)
	return s
}

func argInt(p graphql.ResolveParams, name string, def int) int {
	if n, ok := p.Args[name].(int); ok {
		return n
	}
	return def
}

func argBool(p graphql.ResolveParams, name string) bool {
	b, _ := p.Args[name].(bool)
	return b
}

func optString(m map[string]interface{}, name string) *string {
	if s, ok := m[name].(string); ok {
		return &s
	}
	return nil
}

func optInt(m map[string]interface{}, name string) *int {
	if n, ok := m[name].(int); ok {
		return &n
	}
	return nil
}

func optFloat(m map[string]interface{}, name string) *float64 {
	switch v := m[name].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func optBool(m map[string]interface{}, name string) *bool {
	if b, ok := m[name].(bool); ok {
		return &b
	}
	return nil
}

// cartItems converts an [OrderItemInput] argument.
func cartItems(raw interface{}) ([]models.CartItem, error) {
	list, _ := raw.([]interface{})
	items := make([]models.CartItem, 0, len(list))
	for _, v := range list {
		m, _ := v.(map[string]interface{})
		id, err := models.ParseID("product", argFrom(m, "productId"))
		if err != nil {
			return nil, err
		}
		qty := 0
		if n := optInt(m, "quantity"); n != nil {
			qty = *n
		}
		items = append(items, models.CartItem{ProductID: id, Quantity: qty})
	}
	return items, nil
}

func argFrom(m map[string]interface{}, name string) string {
	s, _ := m[name].(string)
	return s
}

// parseDate accepts YYYY-MM-DD or RFC 3339. With endOfDay, a bare date means
// the last instant of that day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", models.ErrValidation, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
