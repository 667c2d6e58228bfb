package reporting

import (
	"encoding/json"
	"fmt"

	"spl-distributor/internal/domain"
)

// RenderJSON renders the full result as indented JSON, suitable for
// archival or downstream tooling. Field names are part of the audit
// contract and follow the domain JSON tags.
func RenderJSON(result *domain.DistributionResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}
