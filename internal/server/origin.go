package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is the browser Origin allow-list shared by the WebSocket
// upgrader and the CORS middleware.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *zap.Logger
}

func newOriginPolicy(origins []string, log *zap.Logger) *originPolicy {
	normalized, allowAll := normalizeOrigins(origins, log)
	p := &originPolicy{
		allowAll: allowAll,
		allowed:  make(map[string]struct{}, len(normalized)),
		log:      log,
	}
	for _, origin := range normalized {
		p.allowed[origin] = struct{}{}
	}
	return p
}

func normalizeOrigins(origins []string, log *zap.Logger) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", zap.String("origin", origin))
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}

func (p *originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}

	normalizedOrigin, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	if p.allowAll {
		return true
	}

	_, exists := p.allowed[normalizedOrigin]
	return exists
}

// checkOrigin is the upgrader hook. A missing Origin header is rejected.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	if p.allows(r.Header.Get("Origin")) {
		return true
	}

	p.log.Warn("blocked websocket connection from disallowed origin",
		zap.String("origin", r.Header.Get("Origin")),
		zap.String("remote_addr", r.RemoteAddr))
	return false
}

// allowsCORS is the CORS middleware hook.
func (p *originPolicy) allowsCORS(_ *http.Request, origin string) bool {
	return p.allows(origin)
}
