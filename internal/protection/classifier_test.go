package protection

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New("revolico")

	tests := []struct {
		name     string
		in       Input
		expected Verdict
	}{
		{
			name:     "clean page with site marker",
			in:       Input{StatusCode: 200, Body: "<html><title>Revolico - Compra y venta</title></html>"},
			expected: VerdictClean,
		},
		{
			name:     "200 without site marker is not clean",
			in:       Input{StatusCode: 200, Body: "<html>parked domain</html>"},
			expected: VerdictUnknownBlock,
		},
		{
			name:     "429 status",
			in:       Input{StatusCode: 429, Body: ""},
			expected: VerdictRateLimited,
		},
		{
			name:     "rate limit phrase in body",
			in:       Input{StatusCode: 200, Body: "Too many requests, slow down"},
			expected: VerdictRateLimited,
		},
		{
			name:     "403 status",
			in:       Input{StatusCode: 403, Body: ""},
			expected: VerdictAccessDenied,
		},
		{
			name:     "406 status",
			in:       Input{StatusCode: 406, Body: ""},
			expected: VerdictAccessDenied,
		},
		{
			name:     "captcha marker",
			in:       Input{StatusCode: 200, Body: "please solve this reCAPTCHA to continue"},
			expected: VerdictCaptchaRequired,
		},
		{
			name:     "challenge phrase",
			in:       Input{StatusCode: 200, Body: "Just a moment... Checking your browser"},
			expected: VerdictCloudflareChallenge,
		},
		{
			name: "cf-ray header",
			in: Input{
				StatusCode: 200,
				Headers:    http.Header{"Cf-Ray": []string{"8f3a2b1c0d-MIA"}},
				Body:       "<html></html>",
			},
			expected: VerdictCloudflareChallenge,
		},
		{
			name: "cloudflare server header",
			in: Input{
				StatusCode: 200,
				Headers:    http.Header{"Server": []string{"cloudflare"}},
				Body:       "<html></html>",
			},
			expected: VerdictCloudflareChallenge,
		},
		{
			name:     "503 is a challenge",
			in:       Input{StatusCode: 503, Body: "<html></html>"},
			expected: VerdictCloudflareChallenge,
		},
		{
			name:     "empty 404",
			in:       Input{StatusCode: 404, Body: ""},
			expected: VerdictUnknownBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.in))
		})
	}
}

// A 403 carrying a CAPTCHA body must classify by status first: access-denied
// is terminal for the strategy while captcha only abandons the URL.
func TestClassifyPrecedenceStatusBeforeBodyMarker(t *testing.T) {
	c := New("revolico")

	verdict := c.Classify(Input{
		StatusCode: 403,
		Body:       "solve the captcha below to prove you are human",
	})
	assert.Equal(t, VerdictAccessDenied, verdict)
}

func TestClassifyPrecedenceRateLimitBeforeChallenge(t *testing.T) {
	c := New("revolico")

	verdict := c.Classify(Input{
		StatusCode: 429,
		Body:       "cloudflare is checking your browser",
	})
	assert.Equal(t, VerdictRateLimited, verdict)
}

func TestVerdictRetriable(t *testing.T) {
	assert.True(t, VerdictClean.Retriable())
	assert.True(t, VerdictCloudflareChallenge.Retriable())
	assert.True(t, VerdictUnknownBlock.Retriable())
	assert.False(t, VerdictCaptchaRequired.Retriable())
	assert.False(t, VerdictAccessDenied.Retriable())
	assert.False(t, VerdictRateLimited.Retriable())
}

func TestFromRenderedPage(t *testing.T) {
	in := FromRenderedPage("<html>revolico</html>")
	assert.Equal(t, http.StatusOK, in.StatusCode)
	assert.Equal(t, VerdictClean, New("revolico").Classify(in))
}
