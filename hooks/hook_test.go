package hooks_test

import (
	"testing"

	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHook_Validate(t *testing.T) {
	secret, err := signature.GenerateSecret(32)
	require.NoError(t, err)

	t.Run("valid hook", func(t *testing.T) {
		hook := hooks.Hook{
			ID:             "hook-1",
			URL:            "https://example.com/webhook",
			EventKinds:     []string{"push", "issue.*"},
			SigningSecret:  secret.String(),
			ExpectedStatus: 202,
		}
		require.NoError(t, hook.Validate())
	})

	tests := []struct {
		name string
		hook hooks.Hook
		want string
	}{
		{"empty id", hooks.Hook{URL: "https://example.com"}, "id cannot be empty"},
		{"empty url", hooks.Hook{ID: "h"}, "url cannot be empty"},
		{"unsupported scheme", hooks.Hook{ID: "h", URL: "ftp://example.com"}, "url must be http or https"},
		{"non 2xx expected status", hooks.Hook{ID: "h", URL: "https://example.com", ExpectedStatus: 302}, "expected_status must be a 2xx code"},
		{"bad secret", hooks.Hook{ID: "h", URL: "https://example.com", SigningSecret: "plain"}, "invalid signing_secret"},
		{"bad event kind", hooks.Hook{ID: "h", URL: "https://example.com", EventKinds: []string{"push-event"}}, "invalid event_kind"},
	}

	for _, tt := range tests {
		t.Run("error - "+tt.name, func(t *testing.T) {
			err := tt.hook.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHook_Subscribes(t *testing.T) {
	all := hooks.Hook{ID: "all"}
	assert.True(t, all.Subscribes("push"))

	filtered := hooks.Hook{ID: "filtered", EventKinds: []string{"push", "issue.*"}}
	assert.True(t, filtered.Subscribes("push"))
	assert.True(t, filtered.Subscribes("issue.closed"))
	assert.False(t, filtered.Subscribes("tag_push"))
}

func TestHook_Secret(t *testing.T) {
	unsigned := hooks.Hook{ID: "h"}
	s, err := unsigned.Secret()
	require.NoError(t, err)
	assert.True(t, s.IsZero())

	generated, err := signature.GenerateSecret(32)
	require.NoError(t, err)
	signed := hooks.Hook{ID: "h", SigningSecret: generated.String()}
	s, err = signed.Secret()
	require.NoError(t, err)
	assert.Equal(t, generated, s)
}
