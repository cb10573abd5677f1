package parser

import (
	"encoding/json"
	"fmt"

	"dtp/internal/domain"
)

// ParseDiscoveryOutput parses the runner's discovery output file: a JSON
// object keyed by source file, each value mapping test ids to test cases.
func ParseDiscoveryOutput(data []byte) (domain.DiscoveryOutput, error) {
	var out domain.DiscoveryOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse discovery output: %w", err)
	}
	if out == nil {
		out = domain.DiscoveryOutput{}
	}
	return out, nil
}
