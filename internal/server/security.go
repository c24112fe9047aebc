package server

import (
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/conneroisu/livepen/internal/config"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/validation"
)

// Directive is one entry of a policy header: a name and its sources.
type Directive struct {
	Name    string
	Sources []string
}

// SecurityConfig describes the headers set on every response and the
// origins allowed to change editor state.
type SecurityConfig struct {
	CSP            []Directive
	Permissions    []Directive
	FrameOptions   string
	ReferrerPolicy string
	// AllowedOrigins lists origins (scheme://host:port) or bare host:port
	// values accepted for state-changing requests and websockets.
	AllowedOrigins []string
	Logger         logging.Logger
}

// editorCSP applies to the editor page. Preview frames are srcdoc
// documents and inherit it, so scripts and styles from user markup must
// still load.
var editorCSP = []Directive{
	{"default-src", []string{"'self'"}},
	{"script-src", []string{"'self'", "'unsafe-inline'", "'unsafe-eval'", "https:"}},
	{"style-src", []string{"'self'", "'unsafe-inline'", "https:"}},
	{"img-src", []string{"*", "data:", "blob:"}},
	{"connect-src", []string{"'self'", "ws:", "wss:"}},
	{"font-src", []string{"*", "data:"}},
	{"object-src", []string{"'none'"}},
	{"media-src", []string{"*", "data:", "blob:"}},
	{"frame-src", []string{"'self'", "about:"}},
	{"frame-ancestors", []string{"'none'"}},
	{"base-uri", []string{"'self'"}},
	{"form-action", []string{"'self'"}},
}

var editorPermissions = []Directive{
	{"geolocation", nil},
	{"camera", nil},
	{"microphone", nil},
	{"payment", nil},
	{"usb", nil},
	{"fullscreen", []string{"'self'"}},
}

func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP:            editorCSP,
		Permissions:    editorPermissions,
		FrameOptions:   "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}
}

// SecurityConfigFromAppConfig builds the policy for a server listening on
// port.
func SecurityConfigFromAppConfig(cfg *config.Config, port int, logger logging.Logger) *SecurityConfig {
	sec := DefaultSecurityConfig()
	sec.AllowedOrigins = allowedOrigins(cfg, port)
	sec.Logger = logger
	return sec
}

// allowedOrigins returns the configured host, localhost and 127.0.0.1 on
// port, followed by the configured extra origins.
func allowedOrigins(cfg *config.Config, port int) []string {
	p := strconv.Itoa(port)
	origins := make([]string, 0, 3+len(cfg.Server.AllowedOrigins))
	for _, host := range []string{cfg.Server.Host, "localhost", "127.0.0.1"} {
		hp := net.JoinHostPort(host, p)
		if !slices.Contains(origins, hp) {
			origins = append(origins, hp)
		}
	}
	return append(origins, cfg.Server.AllowedOrigins...)
}

// headers renders the static response headers for c.
func (c *SecurityConfig) headers() map[string]string {
	h := map[string]string{
		"X-Content-Type-Options":            "nosniff",
		"X-DNS-Prefetch-Control":            "off",
		"X-Permitted-Cross-Domain-Policies": "none",
		"Cross-Origin-Opener-Policy":        "same-origin",
		"Cross-Origin-Resource-Policy":      "same-origin",
	}
	if len(c.CSP) > 0 {
		h["Content-Security-Policy"] = cspHeader(c.CSP)
	}
	if len(c.Permissions) > 0 {
		h["Permissions-Policy"] = permissionsHeader(c.Permissions)
	}
	if c.FrameOptions != "" {
		h["X-Frame-Options"] = c.FrameOptions
	}
	if c.ReferrerPolicy != "" {
		h["Referrer-Policy"] = c.ReferrerPolicy
	}
	return h
}

// SecurityMiddleware sets the security headers on every response and
// rejects state-changing requests from origins not in AllowedOrigins.
func SecurityMiddleware(secConfig *SecurityConfig) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = DefaultSecurityConfig()
	}
	static := secConfig.headers()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range static {
				w.Header().Set(k, v)
			}

			if changesState(r.Method) {
				origin := requestOrigin(r)
				if err := validation.ValidateOrigin(origin, secConfig.AllowedOrigins); err != nil {
					if secConfig.Logger != nil {
						secConfig.Logger.Warn(r.Context(), err,
							"Rejected cross-origin request",
							"method", r.Method, "path", r.URL.Path, "ip", getClientIP(r))
					}
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func changesState(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// cspHeader joins directives as "name src src; name src". Directives
// without sources are omitted.
func cspHeader(ds []Directive) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		if len(d.Sources) > 0 {
			parts = append(parts, d.Name+" "+strings.Join(d.Sources, " "))
		}
	}
	return strings.Join(parts, "; ")
}

// permissionsHeader joins directives as "name=(src), name=()". An empty
// source list disables the feature.
func permissionsHeader(ds []Directive) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Name + "=(" + strings.Join(d.Sources, " ") + ")"
	}
	return strings.Join(parts, ", ")
}

// requestOrigin returns the Origin header, or the origin of the Referer
// for same-origin form posts that omit it.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if ref, err := url.Parse(r.Header.Get("Referer")); err == nil && ref.Host != "" {
		return ref.Scheme + "://" + ref.Host
	}
	return ""
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
