package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080", " HTTPS://Chat.Example.com ", "not a url", ""}, zaptest.NewLogger(t))

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"https://chat.example.com", true},
		{"HTTPS://CHAT.EXAMPLE.COM", true},
		{"http://chat.example.com", false},
		{"http://localhost:9090", false},
		{"", false},
		{"null", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			assert.Equal(t, tc.want, p.allows(tc.origin))
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"}, zaptest.NewLogger(t))

	assert.True(t, p.allows("http://anything.example.com"))
	assert.False(t, p.allows(""), "a missing origin is never allowed")
}

func TestCheckOriginReadsHeader(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080"}, zaptest.NewLogger(t))

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.False(t, p.checkOrigin(r))

	r.Header.Set("Origin", "http://localhost:8080")
	assert.True(t, p.checkOrigin(r))
}
