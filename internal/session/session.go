package session

import (
	"context"
	"net/http"
	"time"
)

// Cookie is the serializable form of a browser or HTTP cookie. Both the
// HTTP engine and the headless browser speak this type so a session
// earned by one can be replayed by the other.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store persists session cookies between runs, keyed by domain.
type Store interface {
	Load(ctx context.Context, domain string) ([]Cookie, error)
	Save(ctx context.Context, domain string, cookies []Cookie) error
}

func FromHTTPCookies(cookies []*http.Cookie, domain string) []Cookie {
	now := time.Now()
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		d := c.Domain
		if d == "" {
			d = domain
		}
		p := c.Path
		if p == "" {
			p = "/"
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   d,
			Path:     p,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SavedAt:  now,
		})
	}
	return out
}

func ToHTTPCookies(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if expired(c) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

func expired(c Cookie) bool {
	return !c.Expires.IsZero() && c.Expires.Before(time.Now())
}
