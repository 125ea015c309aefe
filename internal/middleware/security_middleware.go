package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// JSON responses never load anything.
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// Streamed model files: an uploaded SVG screenshot opened directly must
	// not run script, so the document is sandboxed.
	assetCSP = "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; sandbox; frame-ancestors 'none'"

	defaultHSTSMaxAge = 365 * 24 * time.Hour
)

type SecurityConfig struct {
	IsProduction bool
	// AssetRoutes are route patterns that stream stored files rather than JSON.
	AssetRoutes []string
	// HSTSMaxAge defaults to one year; HSTS is only sent in production.
	HSTSMaxAge time.Duration
}

// SecurityHeaders sets browser hardening headers. Asset routes get a
// sandboxed policy and a same-site resource policy so screenshots can be
// embedded by the catalogue front end only.
func SecurityHeaders(cfg SecurityConfig) gin.HandlerFunc {
	assetRoutes := make(map[string]struct{}, len(cfg.AssetRoutes))
	for _, r := range cfg.AssetRoutes {
		assetRoutes[r] = struct{}{}
	}

	var hsts string
	if cfg.IsProduction {
		maxAge := cfg.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = defaultHSTSMaxAge
		}
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", int64(maxAge.Seconds()))
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

		if _, ok := assetRoutes[c.FullPath()]; ok {
			h.Set("Content-Security-Policy", assetCSP)
			h.Set("Cross-Origin-Resource-Policy", "same-site")
		} else {
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("Cache-Control", "no-store")
		}

		if hsts != "" {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}
