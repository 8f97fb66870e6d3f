// Package phone extracts and normalizes Cuban mobile phone numbers from raw
// text and HTML. Absence of a number is a normal outcome, never an error.
package phone

import (
	"regexp"
	"sort"
	"strings"
)

// Confidence tier of a validated number, by surface form.
type Confidence int

const (
	// ConfidenceFull is a full international number: 53 + 8 digits.
	ConfidenceFull Confidence = iota
	// ConfidenceLocal is an 8-digit national number.
	ConfidenceLocal
	// ConfidenceLegacy is the old 7-digit form, lowest confidence.
	ConfidenceLegacy
	// ConfidenceInvalid means the candidate failed validation.
	ConfidenceInvalid
)

// patterns cover the surface forms seen on listing pages: E.164 with
// separators, bare national-code form, local 7/8-digit forms, parenthesized
// area-code form, and WhatsApp deep links.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)wa\.me/(\+?53\d{8})\b`),
	regexp.MustCompile(`(?i)whatsapp\.com/send\?phone=(\+?53\d{8})\b`),
	regexp.MustCompile(`\+53[-\s]?[5-9]\d{3}[-\s]?\d{4}\b`),
	regexp.MustCompile(`\(53\)\s*[5-9]\d{3}\s*\d{4}\b`),
	regexp.MustCompile(`\b53\s+[5-9]\d{3}\s+\d{4}\b`),
	regexp.MustCompile(`\b53[5-9]\d{7}\b`),
	regexp.MustCompile(`\([5-9]\d{2}\)\s*\d{3}-\d{4}\b`),
	regexp.MustCompile(`\b[5-9]\d{3}-\d{4}\b`),
	regexp.MustCompile(`\b[5-9]\d{7}\b`),
	regexp.MustCompile(`\b[5-9]\d{2}-\d{4}\b`),
}

var nonDigitPlus = regexp.MustCompile(`[^\d+]`)

// Normalize strips separators and expands a candidate to canonical +53 form.
// Invalid or unrecognized inputs are returned stripped but otherwise
// untouched; Normalize is idempotent.
func Normalize(raw string) string {
	cleaned := nonDigitPlus.ReplaceAllString(raw, "")
	if cleaned == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(cleaned, "+53"):
		return cleaned
	case strings.HasPrefix(cleaned, "53") && len(cleaned) >= 10:
		return "+" + cleaned
	case len(cleaned) == 8 && isMobilePrefix(cleaned[0]):
		return "+53" + cleaned
	case len(cleaned) == 7 && isMobilePrefix(cleaned[0]):
		// Legacy 7-digit numbers map onto the 5xx xxxx mobile range.
		return "+535" + cleaned
	}

	return cleaned
}

// IsValid reports whether a number (raw or normalized) is a plausible Cuban
// mobile number.
func IsValid(number string) bool {
	return Classify(number) != ConfidenceInvalid
}

// Classify validates a number and reports its confidence tier.
func Classify(number string) Confidence {
	digits := strings.Map(keepDigits, number)

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "53") && isMobilePrefix(digits[2]):
		return ConfidenceFull
	case len(digits) == 8 && isMobilePrefix(digits[0]):
		return ConfidenceLocal
	case len(digits) == 7 && isMobilePrefix(digits[0]):
		return ConfidenceLegacy
	}
	return ConfidenceInvalid
}

// Extract pulls every valid phone number out of free text, normalized,
// deduplicated and in first-occurrence order.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	type hit struct {
		pos   int
		value string
	}
	var hits []hit

	for _, pattern := range patterns {
		locs := pattern.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range locs {
			// Deep-link patterns capture the number in group 1; plain
			// patterns use the whole match.
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}
			normalized := Normalize(text[start:end])
			if IsValid(normalized) {
				hits = append(hits, hit{pos: loc[0], value: normalized})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]struct{}, len(hits))
	var out []string
	for _, h := range hits {
		if _, ok := seen[h.value]; ok {
			continue
		}
		seen[h.value] = struct{}{}
		out = append(out, h.value)
	}
	return out
}

// Format renders a valid number as "+53 XXXX XXXX" for display. Invalid
// numbers are returned unchanged.
func Format(number string) string {
	normalized := Normalize(number)
	if !IsValid(normalized) {
		return number
	}

	digits := strings.Map(keepDigits, normalized)
	switch len(digits) {
	case 10:
		return "+53 " + digits[2:6] + " " + digits[6:]
	case 8:
		return "+53 " + digits[:4] + " " + digits[4:]
	case 7:
		return "+53 5" + digits[:3] + " " + digits[3:]
	}
	return number
}

func isMobilePrefix(b byte) bool {
	return b >= '5' && b <= '9'
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
