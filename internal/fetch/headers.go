package fetch

import (
	"math/rand"
	"net/http"
)

var mobileAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/121.0.6167.138 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Mobile Safari/537.36",
}

var desktopAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var acceptLanguages = []string{
	"es-ES,es;q=0.9,en;q=0.8",
	"es-CU,es;q=0.9,en;q=0.8",
	"es-AR,es;q=0.9,en;q=0.8,fr;q=0.7",
	"en-US,en;q=0.9,es;q=0.8",
	"es;q=0.9,en;q=0.8,de;q=0.7",
}

var searchReferers = []string{
	"https://www.google.com/",
	"https://www.google.es/search?q=revolico+cuba",
	"https://duckduckgo.com/",
	"https://www.bing.com/",
}

var clientHintBrands = []string{
	`"Not_A Brand";v="8", "Chromium";v="120"`,
	`"Chromium";v="120", "Not_A Brand";v="8"`,
	`"Google Chrome";v="120", "Chromium";v="120", "Not_A Brand";v="8"`,
}

// headerProfile holds the per-session header identity. A new profile is
// rolled whenever a strategy switches between mobile and desktop mode.
type headerProfile struct {
	userAgent string
	mobile    bool
}

func newHeaderProfile(rng *rand.Rand, mobile bool) headerProfile {
	pool := desktopAgents
	if mobile {
		pool = mobileAgents
	}
	return headerProfile{
		userAgent: pool[rng.Intn(len(pool))],
		mobile:    mobile,
	}
}

// apply sets the full browser-shaped header set on a request,
// randomizing the parts real browsers vary between visits.
func (p headerProfile) apply(rng *rand.Rand, req *http.Request) {
	h := req.Header
	h.Set("User-Agent", p.userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguages[rng.Intn(len(acceptLanguages))])
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")

	h.Set("sec-ch-ua", clientHintBrands[rng.Intn(len(clientHintBrands))])
	if p.mobile {
		h.Set("sec-ch-ua-mobile", "?1")
		h.Set("sec-ch-ua-platform", `"Android"`)
	} else {
		h.Set("sec-ch-ua-mobile", "?0")
		h.Set("sec-ch-ua-platform", `"Windows"`)
	}

	// Real traffic only sometimes carries a referer.
	if rng.Float64() < 0.4 {
		h.Set("Referer", searchReferers[rng.Intn(len(searchReferers))])
	}
}
