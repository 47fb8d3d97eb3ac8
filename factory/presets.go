/*
presets.go - Pre-built retention policy templates

PURPOSE:
  Ready-to-use templates for common construction retention arrangements.
  Each preset returns JSON so it goes through the same parse-and-validate
  path as a user-supplied policy.

AVAILABLE PRESETS:
  StandardTimeBasedJSON:  flat %, released after a defect liability period
  CompletionWarrantyJSON: flat %, half at completion, half at warranty end
  TieredJSON:             progressive brackets, released at completion
*/
package factory

import (
	"fmt"

	"github.com/warp/retention-engine/retention"
)

// StandardTimeBasedJSON returns a flat-rate policy released dlpDays after retention.
func StandardTimeBasedJSON(id, name string, percentage float64, dlpDays int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"retention_percentage": %g,
		"release_type": "TIME_BASED",
		"defect_liability_period": %d
	}`, id, name, percentage, dlpDays)
}

// CompletionWarrantyJSON returns a policy releasing half at completion and
// the rest when the warranty ends.
func CompletionWarrantyJSON(id, name string, percentage float64, warrantyMonths int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"retention_percentage": %g,
		"release_type": "ON_COMPLETION",
		"warranty_period": %d,
		"release_schedule": [
			{"percentage": 50, "event_type": "ON_COMPLETION"},
			{"percentage": 50, "event_type": "WARRANTY_END"}
		]
	}`, id, name, percentage, warrantyMonths)
}

// TieredJSON returns the 10% / 5% / 3% progressive policy with breaks at
// 1M and 5M.
func TieredJSON(id, name string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"release_type": "ON_COMPLETION",
		"tiers": [
			{"threshold": 0, "percentage": 10},
			{"threshold": 1000000, "percentage": 5},
			{"threshold": 5000000, "percentage": 3}
		]
	}`, id, name)
}

// Presets parses every built-in template. The first is marked default.
func (f *PolicyFactory) Presets() ([]retention.Policy, error) {
	sources := []string{
		StandardTimeBasedJSON("std-5-dlp", "Standard 5% (12 month DLP)", 5, 365),
		CompletionWarrantyJSON("split-10-warranty", "10% split completion / warranty", 10, 12),
		TieredJSON("tiered-progressive", "Progressive 10/5/3"),
	}

	policies := make([]retention.Policy, 0, len(sources))
	for i, src := range sources {
		p, err := f.ParsePolicy(src)
		if err != nil {
			return nil, err
		}
		p.IsDefault = i == 0
		policies = append(policies, p)
	}
	return policies, nil
}
