package bot

import "strings"

// NormalizePhone canonicalizes Russian mobile numbers to +7XXXXXXXXXX.
// Returns "" when the input cannot be a valid number.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	plus := strings.HasPrefix(raw, "+")
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 11 && d[0] == '7':
		return "+" + d
	case len(d) == 11 && d[0] == '8' && !plus:
		return "+7" + d[1:]
	case len(d) == 10 && d[0] == '9':
		return "+7" + d
	default:
		return ""
	}
}
