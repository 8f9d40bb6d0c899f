package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// eventKindPattern validates event kinds: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventKindPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Envelope is the Standard Webhooks body posted to a hook endpoint
type Envelope struct {
	// Type is the event kind, e.g. "push" or "issue.updated"
	Type string `json:"type"`

	// Timestamp is when the envelope was built for this attempt
	Timestamp time.Time `json:"timestamp"`

	// Data is the normalized event payload
	Data Payload `json:"data"`
}

// NewEnvelope wraps a normalized payload for delivery
func NewEnvelope(eventKind string, data Payload, now time.Time) (Envelope, error) {
	env := Envelope{
		Type:      eventKind,
		Timestamp: now.UTC(),
		Data:      data,
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating envelope: %w", err)
	}
	return env, nil
}

// Validate checks the envelope against the Standard Webhooks shape
func (e Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !eventKindPattern.MatchString(e.Type) {
		return fmt.Errorf("type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// MarshalJSON returns the JSON encoding of the envelope
func (e Envelope) MarshalJSON() ([]byte, error) {
	type Alias Envelope
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON parses the JSON-encoded data and stores the result
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type Alias Envelope
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshaling envelope: %w", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = timestamp

	return nil
}

// Bytes returns the minified JSON encoding
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes and validates an envelope, as a receiving endpoint would
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating envelope: %w", err)
	}
	return env, nil
}

// MatchesEventKind reports whether kind passes any of the filters.
// An empty filter list accepts every kind. "issue.*" matches "issue.updated".
func MatchesEventKind(kind string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}

	for _, filter := range filters {
		if kind == filter {
			return true
		}
		if prefix, ok := strings.CutSuffix(filter, ".*"); ok && prefix != "" {
			if strings.HasPrefix(kind, prefix+".") {
				return true
			}
		}
	}

	return false
}

// ValidateEventKind validates an event kind or filter
func ValidateEventKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("event kind cannot be empty")
	}

	// Allow wildcard suffix for filtering
	if prefix, ok := strings.CutSuffix(kind, ".*"); ok && prefix != "" {
		kind = prefix
	}

	if !eventKindPattern.MatchString(kind) {
		return fmt.Errorf("event kind must be hierarchical and contain only [a-zA-Z0-9_.]: %s", kind)
	}

	return nil
}
