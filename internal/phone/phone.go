// Package phone turns free-form phone input into the international format Brevo expects.
package phone

import "strings"

// DefaultCountryCode replaces a leading domestic trunk prefix.
const DefaultCountryCode = "+33"

// minLength is the shortest cleaned value accepted, country code included.
const minLength = 4

// Normalizer converts raw numbers to a "+" followed by digits.
type Normalizer struct {
	DefaultCountryCode string
}

// NewNormalizer returns a Normalizer, falling back to DefaultCountryCode when cc is blank.
func NewNormalizer(cc string) *Normalizer {
	cc = strings.TrimSpace(cc)
	if cc == "" {
		cc = DefaultCountryCode
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return &Normalizer{DefaultCountryCode: cc}
}

// Normalize returns the canonical number and true, or "" and false when raw holds no usable number.
func (n *Normalizer) Normalize(raw string) (string, bool) {

	cleaned := clean(strings.TrimSpace(raw))
	if len(cleaned) < minLength {
		return "", false
	}

	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned, true
	case strings.HasPrefix(cleaned, "00"):
		return "+" + cleaned[2:], true
	case strings.HasPrefix(cleaned, "0"):
		return n.DefaultCountryCode + cleaned[1:], true
	default:
		return "+" + cleaned, true
	}
}

// clean keeps digits and a single leading plus sign
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
