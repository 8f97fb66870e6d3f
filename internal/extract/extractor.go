package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dcabrera/revolico-scraper/internal/models"
	"github.com/dcabrera/revolico-scraper/internal/phone"
)

var (
	externalIDRe = regexp.MustCompile(`/item/[^/]+-(\d+)`)
	picVariantRe = regexp.MustCompile(`(https://pic\.revolico\.com/pics/[a-f0-9]+)_.*?\.jpg`)
)

// Description footers carry seller contact blocks that repeat the phone
// number and WhatsApp pitch. They are cut so the description stays
// about the item itself.
var footerCutoffPatterns = []string{
	"teléfono",
	"más información por whatsapp",
	"puntos de venta",
	"llama al",
	"contacta por",
	"escríbenos",
	"para más información",
}

var avatarSelectors = []string{
	`[data-cy="user-avatar"] img`,
	`.AvatarImage__Wrapper-sc-c54cfbd7-0 img`,
	`div.avatar[data-cy="user-avatar"] img`,
	`.AdOwner__Wrapper img[alt="Avatar"]`,
	`.avatar img`,
	`a[data-cy="adUser"] img`,
}

var cubanProvinces = []string{
	"La Habana", "Habana", "Santiago", "Camagüey", "Holguín",
	"Guantánamo", "Granma", "Las Tunas", "Cienfuegos", "Villa Clara",
	"Sancti Spíritus", "Ciego de Ávila", "Matanzas", "Pinar del Río",
	"Artemisa", "Mayabeque", "Isla de la Juventud",
}

// Extractor turns a rendered listing detail page into a structured
// record. Every field degrades independently; a page missing its price
// block still yields title, phones and images.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extract")}
}

func (x *Extractor) Extract(sourceURL, html string) *models.ExtractedListing {
	listing := &models.ExtractedListing{
		SourceURL: sourceURL,
		Currency:  "USD",
		Condition: models.ConditionUsed,
		ScrapedAt: time.Now().UTC(),
	}

	if m := externalIDRe.FindStringSubmatch(sourceURL); m != nil {
		listing.ExternalID = m[1]
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		x.logger.Warn("failed to parse listing html", "url", sourceURL, "error", err)
		return listing
	}

	listing.Title = strings.TrimSpace(doc.Find(`[data-cy="adTitle"]`).First().Text())
	listing.Description = trimContactFooter(strings.TrimSpace(doc.Find(`[data-cy="adDescription"]`).First().Text()))

	if name := x.sellerName(doc); name != "" {
		listing.SellerName = &name
	}
	if pic := profilePicture(doc); pic != "" {
		listing.ProfilePictureURL = &pic
	}

	priceText := strings.TrimSpace(doc.Find(`[data-cy="adPrice"]`).First().Text())
	listing.Price, listing.Currency = ParsePrice(priceText)

	listing.PhoneNumbers = phone.ExtractFromHTML(html)
	listing.ImageURLs = galleryImages(doc)
	listing.Category = category(doc)
	listing.Location = location(doc, sourceURL)

	lower := strings.ToLower(html)
	if strings.Contains(lower, "nuevo") || strings.Contains(lower, "new") {
		listing.Condition = models.ConditionNew
	}

	return listing
}

// trimContactFooter cuts trailing contact blocks. The position check
// keeps short descriptions intact when they open with a cutoff word.
func trimContactFooter(text string) string {
	lower := strings.ToLower(text)
	for _, pattern := range footerCutoffPatterns {
		if pos := strings.Index(lower, pattern); pos > 50 {
			text = strings.TrimSpace(text[:pos])
			lower = strings.ToLower(text)
		}
	}
	return text
}

// sellerName reads the visible name element, falling back to the
// server-rendered Apollo cache when the DOM element is empty or holds
// something other than a real name.
func (x *Extractor) sellerName(doc *goquery.Document) string {
	if name := strings.TrimSpace(doc.Find(`[data-cy="userFullname"]`).First().Text()); validSellerName(name) {
		return name
	}
	if name := sellerFromNextData(doc); validSellerName(name) {
		return name
	}
	return ""
}

// validSellerName rejects strings the name slot gets filled with when
// no seller is shown: prices, bare IDs, and the follow button label.
func validSellerName(name string) bool {
	if len([]rune(name)) <= 2 {
		return false
	}
	digitsOnly := true
	for _, r := range name {
		if r < '0' || r > '9' {
			digitsOnly = false
			break
		}
	}
	if digitsOnly {
		return false
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "seguir") || strings.Contains(lower, "follow") {
		return false
	}
	for _, prefix := range []string{"$", "cup", "usd"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

func sellerFromNextData(doc *goquery.Document) string {
	raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if raw == "" {
		return ""
	}

	var payload struct {
		Props struct {
			PageProps struct {
				ApolloState map[string]json.RawMessage `json:"__APOLLO_STATE__"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}

	for key, value := range payload.Props.PageProps.ApolloState {
		if !strings.HasPrefix(key, "AdType:") {
			continue
		}
		var entry struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(value, &entry); err == nil && entry.Name != "" {
			return entry.Name
		}
	}
	return ""
}

func profilePicture(doc *goquery.Document) string {
	for _, selector := range avatarSelectors {
		src, ok := doc.Find(selector).First().Attr("src")
		if !ok || src == "" {
			continue
		}

		if strings.Contains(src, "lh3.googleusercontent.com") {
			return strings.Replace(src, "=s96-c", "=s400-c", 1)
		}
		// pic.revolico.com avatar URLs embed a token tied to the exact
		// quality variant, so those are never rewritten.
		return src
	}
	return ""
}

// galleryImages collects slide images from the ad gallery, preferring
// the zoomable high-resolution variant, then the desktop source set,
// then whatever img the slide carries. CDN URLs are normalized to the
// _high variant and capped at ten.
func galleryImages(doc *goquery.Document) []string {
	gallery := doc.Find(`[data-cy="adImages"]`).First()
	if gallery.Length() == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var images []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		images = append(images, u)
	}

	gallery.Find(".swiper-slide").Each(func(_ int, slide *goquery.Selection) {
		highFound := false
		slide.Find(".swiper-zoom-container img").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if strings.Contains(src, "_high.jpg") && strings.Contains(src, "revolico") {
				add(src)
				highFound = true
			}
		})
		if highFound {
			return
		}

		var best string
		slide.Find("source").EachWithBreak(func(_ int, source *goquery.Selection) bool {
			srcset, ok := source.Attr("srcset")
			if !ok || srcset == "" {
				return true
			}
			u := firstSrcsetURL(srcset)
			if u == "" {
				return true
			}
			if strings.Contains(u, "_detail_desktop.jpg") {
				best = u
				return false
			}
			if best == "" {
				best = u
			}
			return true
		})
		if best != "" {
			add(best)
			return
		}

		if src, ok := slide.Find("img").First().Attr("src"); ok && strings.Contains(src, "revolico") {
			add(src)
		}
	})

	for i, u := range images {
		if strings.Contains(u, "pic.revolico.com/pics/") {
			images[i] = picVariantRe.ReplaceAllString(u, "${1}_high.jpg")
		}
	}

	if len(images) > 10 {
		images = images[:10]
	}
	return images
}

func firstSrcsetURL(srcset string) string {
	first := srcset
	if i := strings.Index(first, ","); i >= 0 {
		first = first[:i]
	}
	fields := strings.Fields(strings.TrimSpace(first))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func category(doc *goquery.Document) string {
	for _, selector := range []string{`nav[aria-label="breadcrumb"]`, ".breadcrumb", `[data-cy="breadcrumb"]`} {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ">")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) > 2 {
			return parts[len(parts)-1]
		}
		if len(parts) > 1 {
			return parts[1]
		}
	}
	return ""
}

func location(doc *goquery.Document, sourceURL string) string {
	if loc := strings.TrimSpace(doc.Find(`[data-cy="adLocation"]`).First().Text()); loc != "" {
		return loc
	}

	haystack := strings.ToLower(doc.Find("title").First().Text() + " " + sourceURL)
	for _, province := range cubanProvinces {
		if strings.Contains(haystack, strings.ToLower(province)) {
			return province
		}
	}
	return ""
}
