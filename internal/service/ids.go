package service

import (
	"strings"

	"github.com/google/uuid"
)

// generateID mints an opaque id tagged with a short type prefix
// ("req", "ses", "evt").
func generateID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw[:26]
}
