package conversation

import (
	"strings"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

// ResolveRule returns the first active rule whose normalized trigger occurs
// inside the normalized message, or nil when no rule matches. Rules must
// already be sorted by ascending priority, which is how the store returns
// them.
func ResolveRule(message string, rules []storage.RuleRecord) *storage.RuleRecord {
	normalized := Normalize(message)
	if normalized == "" {
		return nil
	}

	for i := range rules {
		trigger := Normalize(rules[i].Trigger)
		if trigger == "" {
			continue
		}
		if strings.Contains(normalized, trigger) {
			return &rules[i]
		}
	}
	return nil
}
