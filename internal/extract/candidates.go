package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dcabrera/revolico-scraper/internal/models"
)

// ExtractCandidates pulls listing detail URLs out of an index page.
// Publish forms and duplicate links are dropped; relative links are
// resolved against the page URL.
func ExtractCandidates(html, pageURL string) []models.ListingCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var candidates []models.ListingCandidate

	collect := func(sel *goquery.Selection, requireDigit bool) {
		sel.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return
			}
			if strings.Contains(href, "/item/publish") {
				return
			}
			if requireDigit && !slugHasDigit(href) {
				return
			}

			abs := absolutize(base, href)
			if abs == "" || seen[abs] {
				return
			}
			seen[abs] = true

			title := strings.TrimSpace(a.Text())
			if len(title) > 100 {
				title = title[:100]
			}

			candidates = append(candidates, models.ListingCandidate{
				URL:          abs,
				Title:        title,
				DiscoveredAt: now,
			})
		})
	}

	collect(doc.Find(`a[href*="/item/"]`), false)

	// Generic link sweep for layouts without /item/ paths. The digit
	// requirement filters navigation links out of the slug-shaped ones.
	if len(candidates) == 0 {
		collect(doc.Find(`a[href*="anuncio"], a[href*="/ad/"], a[href*="clasificado"], a[href*="listing"]`), true)
	}

	return candidates
}

func slugHasDigit(href string) bool {
	slug := href
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	return strings.ContainsAny(slug, "0123456789")
}

func absolutize(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
