package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a declarative replay conformance case: a control feed plus
// assertions about the folded state. Scenarios double as documentation
// of the authorization rules, so they favor readable YAML over Go setup.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Records is the control feed in delivery order. Payloads are plain
	// YAML maps encoded to JSON and pushed through the real codec, so a
	// scenario exercises decode, schema validation, and the fold.
	Records []RecordStep `yaml:"records"`

	// Assertions validate the folded state.
	Assertions []Assertion `yaml:"assertions"`
}

// RecordStep is one feed record in a scenario.
type RecordStep struct {
	Sender  string         `yaml:"sender"`
	SentAt  int64          `yaml:"sent_at"`
	Payload map[string]any `yaml:"payload"`
}

// PayloadJSON encodes the step's payload map as JSON feed bytes.
func (r RecordStep) PayloadJSON() ([]byte, error) {
	b, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// Assertion is one check against folded state.
//
// Supported types:
//   - config_name:      Value is the expected community name
//   - role:             DID + Role; Role "member" asserts no explicit entry
//   - channel_exists:   Channel; Negate to assert absence
//   - channel_archived: Channel; Negate to assert not archived
//   - banned:           ID (either identity form); Negate to assert not banned
//   - announcements:    Count
type Assertion struct {
	Type    string `yaml:"type"`
	Value   string `yaml:"value,omitempty"`
	DID     string `yaml:"did,omitempty"`
	Role    string `yaml:"role,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Count   int    `yaml:"count,omitempty"`
	Negate  bool   `yaml:"negate,omitempty"`
}

// LoadScenario reads one scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(sc.Records) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one record is required", path)
	}
	return &sc, nil
}
