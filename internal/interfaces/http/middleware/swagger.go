package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// SwaggerConfig controls access to the generated API documentation.
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool     // require a valid JWT before serving docs
	AllowedIPs  []string // optional allow list, single IPs or CIDR ranges
}

// SwaggerProtection guards the swagger routes. Disabled docs answer 404 so
// the route is indistinguishable from an unregistered one. When an allow
// list is set, requests from other addresses get 403. With RequireAuth the
// JWT middleware runs before the docs are served.
func SwaggerProtection(cfg SwaggerConfig, jwtMiddleware gin.HandlerFunc) gin.HandlerFunc {
	allowed := parseAllowList(cfg.AllowedIPs)

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "API documentation is not available",
				},
			})
			return
		}

		if len(allowed) > 0 && !clientAllowed(c, allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Access to API documentation is restricted",
				},
			})
			return
		}

		if cfg.RequireAuth && jwtMiddleware != nil {
			jwtMiddleware(c)
			if c.IsAborted() {
				return
			}
		}

		c.Next()
	}
}

// parseAllowList converts configured entries into prefixes once at setup.
// Bare IPs become single-address prefixes; entries that do not parse are
// dropped.
func parseAllowList(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if p, err := netip.ParsePrefix(entry); err == nil {
				prefixes = append(prefixes, p.Masked())
			}
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// clientAllowed reports whether the request's client address falls inside
// any allowed prefix. Unparseable addresses are denied.
func clientAllowed(c *gin.Context, allowed []netip.Prefix) bool {
	addr, err := netip.ParseAddr(c.ClientIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
