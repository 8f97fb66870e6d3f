package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 45*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "es-ES", opts.Locale)
	assert.Equal(t, "America/Havana", opts.TimezoneID)
}

func TestChallengeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Just a moment...", true},
		{"Checking your browser before accessing", true},
		{"Attention Required! | Cloudflare", true},
		{"Revolico - Compra y venta de todo en Cuba", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, challengeTitle(tt.title), tt.title)
	}
}
