package ids

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	valid := uuid.NewString()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"canonical", valid, false},
		{"upper case", strings.ToUpper(valid), false},
		{"empty", "", true},
		{"username", "alice", true},
		{"braced", "{" + valid + "}", true},
		{"no hyphens", strings.ReplaceAll(valid, "-", ""), true},
		{"nil uuid", uuid.Nil.String(), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseUserID(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed))
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tc.input), id.String())
		})
	}
}

func TestUserIDTextRoundTrip(t *testing.T) {
	id := NewUserID()

	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded UserID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, id, decoded)

	require.Error(t, decoded.UnmarshalText([]byte("not-a-user")))
	assert.Equal(t, id, decoded, "failed decode must leave the value untouched")
}

func TestCredentialsAreDistinctAndParseable(t *testing.T) {
	a := NewCredential()
	b := NewCredential()

	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
	assert.True(t, Credential{}.IsZero())

	parsed, err := ParseCredential(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseCredential("")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMessageID(t *testing.T) {
	id := NewMessageID()

	parsed, err := ParseMessageID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseMessageID("msg-1")
	assert.ErrorIs(t, err, ErrMalformed)
}
