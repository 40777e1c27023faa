package chatwatch

import (
	"encoding/json"
	"fmt"
)

// Envelope is one event forwarded by the injected page runtime over the
// CDP binding. Type selects which fields are populated.
type Envelope struct {
	Type string `json:"type"`

	// mutation | scan
	Key  string `json:"key,omitempty"`
	HTML string `json:"html,omitempty"`
	Seq  uint64 `json:"seq,omitempty"`

	// navigate
	URL string `json:"url,omitempty"`

	// keydown
	Ctrl    bool   `json:"ctrl,omitempty"`
	Shift   bool   `json:"shift,omitempty"`
	Alt     bool   `json:"alt,omitempty"`
	KeyName string `json:"keyName,omitempty"`
}

const (
	envMutation = "mutation"
	envScan     = "scan"
	envKeydown  = "keydown"
	envToggle   = "toggle"
	envNavigate = "navigate"
)

// parseEnvelopes decodes one binding payload, a JSON array of envelopes.
func parseEnvelopes(payload string) ([]Envelope, error) {
	var envs []Envelope
	if err := json.Unmarshal([]byte(payload), &envs); err != nil {
		return nil, fmt.Errorf("chatwatch: parse binding payload: %w", err)
	}
	return envs, nil
}
