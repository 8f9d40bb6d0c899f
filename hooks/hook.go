package hooks

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/marcelsud/webhook-dispatcher/signature"
)

// ErrNotFound is returned when no hook is registered under an id
var ErrNotFound = errors.New("hook not found")

/* Hook is a registered endpoint that receives event notifications
 * Uses value semantics: jobs read a snapshot, never a shared instance
 */
type Hook struct {
	ID             string
	URL            string
	EventKinds     []string          // Event kinds to subscribe to (e.g. ["push", "issue.*"]); empty means all
	SigningSecret  string            // Standard Webhooks signing secret (whsec_ prefix)
	ExpectedStatus int               // Status the endpoint answers with on success; 0 accepts any 2xx
	Headers        map[string]string // Static headers sent with every delivery
}

// Validate checks if the hook configuration is valid
func (h Hook) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if h.URL == "" {
		return fmt.Errorf("url cannot be empty for hook %s", h.ID)
	}
	u, err := url.Parse(h.URL)
	if err != nil {
		return fmt.Errorf("invalid url for hook %s: %w", h.ID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https for hook %s (got %q)", h.ID, u.Scheme)
	}
	if h.ExpectedStatus != 0 && (h.ExpectedStatus < 200 || h.ExpectedStatus > 299) {
		return fmt.Errorf("expected_status must be a 2xx code for hook %s (got %d)", h.ID, h.ExpectedStatus)
	}
	if h.SigningSecret != "" {
		if _, err := signature.ParseSecret(h.SigningSecret); err != nil {
			return fmt.Errorf("invalid signing_secret for hook %s: %w", h.ID, err)
		}
	}
	for _, kind := range h.EventKinds {
		if err := payload.ValidateEventKind(kind); err != nil {
			return fmt.Errorf("invalid event_kind '%s' for hook %s: %w", kind, h.ID, err)
		}
	}
	return nil
}

// Subscribes reports whether the hook wants events of the given kind
func (h Hook) Subscribes(eventKind string) bool {
	return payload.MatchesEventKind(eventKind, h.EventKinds)
}

// Secret returns the parsed signing secret; the zero Secret when signing is off
func (h Hook) Secret() (signature.Secret, error) {
	if h.SigningSecret == "" {
		return signature.Secret{}, nil
	}
	return signature.ParseSecret(h.SigningSecret)
}
