package surface

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// panRange is the number of display steps on each side of center.
const panRange = 50

// PanString renders a normalized pan value as shown on the LCD:
// "  C", " 12L", " 30R".
func PanString(v float64) string {
	steps := int(v * panRange * 2)
	switch {
	case steps == panRange:
		return "  C"
	case steps < panRange:
		return fmt.Sprintf(" %dL", panRange-steps)
	default:
		return fmt.Sprintf(" %dR", steps-panRange)
	}
}

// PercentString renders a normalized value as a percentage.
func PercentString(v float64) string {
	return fmt.Sprintf("%3d%%", int(v*100+0.5))
}

var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ASCIILabel folds text to printable ASCII and cuts it to maxLen bytes.
// Accents are stripped, ß becomes "ss" and anything else outside ASCII is
// dropped.
func ASCIILabel(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "ß", "ss")
	folded, _, err := transform.String(asciiFolder, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	for _, r := range folded {
		if b.Len() >= maxLen {
			break
		}
		if r < 0x20 || r >= 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayName shortens a name for a strip cell: first character kept, the
// next five lowercased.
func DisplayName(text string) string {
	text = ASCIILabel(text, 6)
	if len(text) < 2 {
		return text
	}
	return text[:1] + strings.ToLower(text[1:])
}

// CondenseValue drops '+' and spaces from a host value string and cuts it
// to maxLen.
func CondenseValue(text string, maxLen int) string {
	var b strings.Builder
	for _, r := range ASCIILabel(text, len(text)) {
		if b.Len() >= maxLen {
			break
		}
		if r == '+' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
