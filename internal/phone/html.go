package phone

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contactSelectors identify the seller/contact areas of a listing page.
// Scoping the search there first keeps prices and ad IDs elsewhere on the
// page from being misread as phone numbers.
var contactSelectors = []string{
	`[data-cy="adUser"]`,
	`.user-profile`,
	`.contact-info`,
	`.seller-contact`,
	`a[href*="wa.me"]`,
	`a[href*="whatsapp"]`,
}

// ExtractFromHTML scans structured HTML for phone numbers. Contact/profile
// areas are searched first; the whole page is only scanned when the scoped
// search finds nothing.
func ExtractFromHTML(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extract(html)
	}

	var scoped strings.Builder
	for _, selector := range contactSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			scoped.WriteString(s.Text())
			scoped.WriteString(" ")
			collectHrefs(s, &scoped)
		})
	}

	if numbers := Extract(scoped.String()); len(numbers) > 0 {
		return numbers
	}

	// Whole-page fallback includes every href so deep links survive even
	// when the anchor text is an icon.
	var full strings.Builder
	full.WriteString(doc.Text())
	full.WriteString(" ")
	collectHrefs(doc.Selection, &full)
	return Extract(full.String())
}

func collectHrefs(s *goquery.Selection, out *strings.Builder) {
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			out.WriteString(href)
			out.WriteString(" ")
		}
	})
	if href, ok := s.Attr("href"); ok {
		out.WriteString(href)
		out.WriteString(" ")
	}
}
