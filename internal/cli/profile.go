package cli

import (
	"encoding/json"
	"fmt"

	"resumechat/internal/types"
)

// parseProfile decodes a canonical profile from its JSON representation
func parseProfile(content string) (*types.CanonicalProfile, error) {
	var profile types.CanonicalProfile
	if err := json.Unmarshal([]byte(content), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return &profile, nil
}
