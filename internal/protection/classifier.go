package protection

import (
	"net/http"
	"strings"
)

// Verdict is the outcome of inspecting one response or rendered page.
type Verdict string

const (
	VerdictClean               Verdict = "clean"
	VerdictCloudflareChallenge Verdict = "cloudflare_challenge"
	VerdictCaptchaRequired     Verdict = "captcha_required"
	VerdictRateLimited         Verdict = "rate_limited"
	VerdictAccessDenied        Verdict = "access_denied"
	VerdictUnknownBlock        Verdict = "unknown_block"
)

// Retriable reports whether the same URL may be retried under the same
// strategy. CAPTCHA needs human intervention; access-denied and rate-limit
// are terminal for the current strategy.
func (v Verdict) Retriable() bool {
	switch v {
	case VerdictCaptchaRequired, VerdictAccessDenied, VerdictRateLimited:
		return false
	}
	return true
}

// Input is the normalized view of one fetch attempt's outcome. Headers may
// be nil for rendered pages where only the final DOM is available.
type Input struct {
	StatusCode int
	Headers    http.Header
	Body       string
}

// FromResponse builds a classifier input from an HTTP response whose body
// has already been read.
func FromResponse(resp *http.Response, body []byte) Input {
	return Input{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(body),
	}
}

// FromRenderedPage builds a classifier input from a browser-rendered page.
// A rendered page has no status line, so the status is treated as 200.
func FromRenderedPage(html string) Input {
	return Input{StatusCode: http.StatusOK, Body: html}
}

var (
	rateLimitPhrases = []string{
		"rate limit",
		"too many requests",
	}
	accessDeniedPhrases = []string{
		"access denied",
		"access to this page has been denied",
	}
	captchaMarkers = []string{
		"captcha",
		"recaptcha",
		"hcaptcha",
	}
	challengePhrases = []string{
		"cloudflare",
		"cf-ray",
		"checking your browser",
		"please wait while we check",
		"ddos protection",
		"security check",
		"just a moment",
	}
)

// Classifier assigns a Verdict to a response or rendered page. The zero
// value is not usable; construct with New.
type Classifier struct {
	siteMarker string
}

// New returns a classifier that recognizes successful pages by the given
// site-identity marker (matched case-insensitively against the body).
func New(siteMarker string) *Classifier {
	return &Classifier{siteMarker: strings.ToLower(siteMarker)}
}

// Classify inspects status code, headers and body in that order. The first
// matching rule wins; rate-limit and access-denied outrank the softer
// challenge signal because a challenge page can coexist with a 403.
func (c *Classifier) Classify(in Input) Verdict {
	body := strings.ToLower(in.Body)

	if in.StatusCode == http.StatusTooManyRequests || containsAny(body, rateLimitPhrases) {
		return VerdictRateLimited
	}

	if in.StatusCode == http.StatusForbidden || in.StatusCode == http.StatusNotAcceptable ||
		containsAny(body, accessDeniedPhrases) {
		return VerdictAccessDenied
	}

	if containsAny(body, captchaMarkers) {
		return VerdictCaptchaRequired
	}

	if c.isChallenge(in, body) {
		return VerdictCloudflareChallenge
	}

	if in.StatusCode == http.StatusOK && c.siteMarker != "" && strings.Contains(body, c.siteMarker) {
		return VerdictClean
	}

	return VerdictUnknownBlock
}

func (c *Classifier) isChallenge(in Input, body string) bool {
	if containsAny(body, challengePhrases) {
		return true
	}
	if in.Headers != nil {
		if in.Headers.Get("Cf-Ray") != "" {
			return true
		}
		if strings.Contains(strings.ToLower(in.Headers.Get("Server")), "cloudflare") {
			return true
		}
	}
	return in.StatusCode == http.StatusServiceUnavailable
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
