package security

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

// Headers sets the response headers every API answer carries. The API only
// serves JSON to tills, so nothing may be framed, sniffed or cached.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// NoStorePrefix marks responses under this path as uncacheable. Order
	// and receipt items must always be read fresh before an edit.
	NoStorePrefix string
}

// Middleware writes the headers before next runs so handlers may override them.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Cross-Origin-Resource-Policy", "same-site")
		hdr.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if hsts != "" && r.TLS != nil {
			hdr.Set("Strict-Transport-Security", hsts)
		}
		if h.NoStorePrefix != "" && strings.HasPrefix(r.URL.Path, h.NoStorePrefix) {
			hdr.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	v := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}
