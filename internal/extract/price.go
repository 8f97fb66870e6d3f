package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe = regexp.MustCompile(`(?i)([\d.,]+)\s*(CUP|USD|EUR|MLC)`)

	commaThousandsRe = regexp.MustCompile(`^[\d.,]+,\d{3}$`)
	commaDecimalRe   = regexp.MustCompile(`^[\d.,]+,\d{1,2}$`)
	periodDecimalRe  = regexp.MustCompile(`^[\d.,]+\.\d{1,2}$`)
)

// ParsePrice pulls an amount and currency out of free-form price text.
// Cuban listings mix European and US digit grouping, so the separator
// roles are decided by what trails the last separator:
//
//	"8.000 CUP"    -> 8000 (periods group thousands)
//	"1,300 USD"    -> 1300 (comma groups thousands)
//	"1.200,50 USD" -> 1200.50 (European decimal comma)
//	"1,300.50 USD" -> 1300.50 (US decimal point)
//
// A nil amount with currency "USD" means no price was recognized.
func ParsePrice(text string) (*float64, string) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil, "USD"
	}

	raw := m[1]
	currency := strings.ToUpper(m[2])

	var cleaned string
	switch {
	case commaThousandsRe.MatchString(raw):
		cleaned = strings.NewReplacer(",", "", ".", "").Replace(raw)
	case commaDecimalRe.MatchString(raw):
		cleaned = strings.ReplaceAll(raw, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case periodDecimalRe.MatchString(raw):
		cleaned = strings.ReplaceAll(raw, ",", "")
	default:
		cleaned = strings.NewReplacer(".", "", ",", "").Replace(raw)
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, "USD"
	}
	return &value, currency
}
