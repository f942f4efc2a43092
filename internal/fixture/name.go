package fixture

import "fmt"

// Limits for display names built from a value's textual form.
const (
	maxDisplayName = 25
	displayHead    = 20
	displayTail    = 2
)

// DisplayName returns a short label for a generated test parameter.
// Named cases use their name; anything else uses its %v form, shortened to
// the first 20 and last 2 characters when longer than 25.
func DisplayName(v any) string {
	switch c := v.(type) {
	case Case:
		if c.Name != "" {
			return c.Name
		}
	case *Case:
		if c != nil && c.Name != "" {
			return c.Name
		}
	case map[string]any:
		// Raw case mappings carry their name under ":name:".
		if name, ok := c[":name:"].(string); ok {
			return name
		}
	}

	s := []rune(fmt.Sprintf("%v", v))
	if len(s) > maxDisplayName {
		return string(s[:displayHead]) + "..." + string(s[len(s)-displayTail:])
	}
	return string(s)
}
