// Package signature signs outgoing deliveries following Standard Webhooks.
// The signed content is "{webhook-id}.{webhook-timestamp}.{body}", authenticated
// with HMAC-SHA256 and sent as "v1,<base64>" in the webhook-signature header.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SecretPrefix marks Standard Webhooks symmetric secrets
	SecretPrefix = "whsec_"

	// Version is the symmetric signature scheme identifier
	Version = "v1"

	MinSecretBytes = 24
	MaxSecretBytes = 64
)

// Header names set on every signed request
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// ErrNoMatch is returned by Verify when no signature in the header matches
var ErrNoMatch = errors.New("no matching signature")

// Secret is a decoded signing key
type Secret struct {
	raw []byte
}

// GenerateSecret creates a random secret of size bytes
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}
	return Secret{raw: raw}, nil
}

// ParseSecret decodes a "whsec_<base64>" secret
func ParseSecret(encoded string) (Secret, error) {
	b64, ok := strings.CutPrefix(encoded, SecretPrefix)
	if !ok {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}
	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	return Secret{raw: raw}, nil
}

// String returns the prefixed base64 form accepted by ParseSecret
func (s Secret) String() string {
	return SecretPrefix + base64.StdEncoding.EncodeToString(s.raw)
}

// IsZero reports whether the secret is unset
func (s Secret) IsZero() bool {
	return len(s.raw) == 0
}

// Sign returns the webhook-signature value for one delivery
func Sign(secret Secret, msgID string, ts time.Time, body []byte) (string, error) {
	if secret.IsZero() {
		return "", fmt.Errorf("signing secret is empty")
	}
	if msgID == "" || strings.Contains(msgID, ".") {
		return "", fmt.Errorf("invalid message id %q", msgID)
	}
	return Version + "," + base64.StdEncoding.EncodeToString(mac(secret, msgID, ts, body)), nil
}

// Verify checks a webhook-signature header, which may hold several
// space-delimited signatures during secret rotation
func Verify(secret Secret, msgID string, ts time.Time, body []byte, header string) error {
	expected := mac(secret, msgID, ts, body)

	for _, part := range strings.Fields(header) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != Version {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return ErrNoMatch
}

// ParseTimestamp reads the webhook-timestamp header (unix seconds)
func ParseTimestamp(header string) (time.Time, error) {
	sec, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp header: %w", err)
	}
	return time.Unix(sec, 0), nil
}

func mac(secret Secret, msgID string, ts time.Time, body []byte) []byte {
	h := hmac.New(sha256.New, secret.raw)
	h.Write([]byte(msgID))
	h.Write([]byte("."))
	h.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}
