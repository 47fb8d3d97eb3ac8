/*
Package factory provides JSON/YAML to Go policy conversion.

PURPOSE:
  Converts retention policy definitions into retention.Policy values. This
  enables policy configuration without code changes: finance can define
  templates in a YAML catalog or post them as JSON, and the factory creates
  the proper Go structs.

JSON SCHEMA:
  {
    "id": "std-5-warranty",
    "name": "5% with warranty split",
    "retention_percentage": 5,
    "release_type": "ON_COMPLETION",
    "warranty_period": 12,
    "release_schedule": [
      {"percentage": 50, "event_type": "ON_COMPLETION"},
      {"percentage": 50, "event_type": "WARRANTY_END"}
    ],
    "is_default": true
  }

  Tiered templates replace retention_percentage with
    "tiers": [{"threshold": 0, "percentage": 10}, {"threshold": 1000000, "percentage": 5}]

CATALOG (YAML):
  policies:
    - id: std-5
      name: Standard 5%
      retention_percentage: 5
      release_type: TIME_BASED
      defect_liability_period: 365

KEY FEATURES:
  - Amounts accept numbers or numeric strings (generic.FlexAmount)
  - is_active defaults to true when omitted
  - Every parsed policy is run through retention.ValidateRetentionPolicy

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)

  policies, err := factory.LoadCatalog(file)

SEE ALSO:
  - retention/types.go: Policy type definition
  - factory/presets.go: built-in templates
*/
package factory

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON/YAML representation of a policy.
type PolicyJSON struct {
	ID                    string             `json:"id" yaml:"id"`
	Name                  string             `json:"name" yaml:"name"`
	Description           string             `json:"description,omitempty" yaml:"description,omitempty"`
	RetentionPercentage   generic.FlexAmount `json:"retention_percentage" yaml:"retention_percentage"`
	Tiers                 []TierJSON         `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	ReleaseType           string             `json:"release_type" yaml:"release_type"`
	DefectLiabilityPeriod int                `json:"defect_liability_period,omitempty" yaml:"defect_liability_period,omitempty"` // days
	WarrantyPeriod        int                `json:"warranty_period,omitempty" yaml:"warranty_period,omitempty"`                 // months
	ReleaseSchedule       []TrancheJSON      `json:"release_schedule,omitempty" yaml:"release_schedule,omitempty"`
	ScheduleAnchor        string             `json:"schedule_anchor,omitempty" yaml:"schedule_anchor,omitempty"` // previous, origin
	IsDefault             bool               `json:"is_default,omitempty" yaml:"is_default,omitempty"`
	IsActive              *bool              `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// TierJSON is one progressive bracket.
type TierJSON struct {
	Threshold  generic.FlexAmount `json:"threshold" yaml:"threshold"`
	Percentage generic.FlexAmount `json:"percentage" yaml:"percentage"`
}

// TrancheJSON is one step of a release schedule.
type TrancheJSON struct {
	Percentage generic.FlexAmount `json:"percentage" yaml:"percentage"`
	EventType  string             `json:"event_type" yaml:"event_type"`
	DaysAfter  int                `json:"days_after,omitempty" yaml:"days_after,omitempty"`
}

// CatalogFile is the top-level shape of a policy catalog.
type CatalogFile struct {
	Policies []PolicyJSON `json:"policies" yaml:"policies"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts serialized policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (retention.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return retention.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated retention.Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (retention.Policy, error) {
	policy := retention.Policy{
		ID:                    retention.PolicyID(pj.ID),
		Name:                  pj.Name,
		Description:           pj.Description,
		RetentionPercentage:   pj.RetentionPercentage.Decimal,
		ReleaseType:           retention.ReleaseType(pj.ReleaseType),
		DefectLiabilityPeriod: pj.DefectLiabilityPeriod,
		WarrantyPeriod:        pj.WarrantyPeriod,
		ScheduleAnchor:        retention.ScheduleAnchor(pj.ScheduleAnchor),
		IsDefault:             pj.IsDefault,
		IsActive:              true,
	}
	if pj.IsActive != nil {
		policy.IsActive = *pj.IsActive
	}

	for _, t := range pj.Tiers {
		policy.Tiers = append(policy.Tiers, retention.Tier{
			Threshold:  t.Threshold.Decimal,
			Percentage: t.Percentage.Decimal,
		})
	}
	for _, t := range pj.ReleaseSchedule {
		policy.ReleaseSchedule = append(policy.ReleaseSchedule, retention.Tranche{
			Percentage: t.Percentage.Decimal,
			EventType:  retention.ReleaseType(t.EventType),
			DaysAfter:  t.DaysAfter,
		})
	}

	if result := retention.ValidateRetentionPolicy(policy); !result.Valid {
		return retention.Policy{}, &retention.ValidationError{Subject: "policy " + pj.ID, Errors: result.Errors}
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy retention.Policy) PolicyJSON {
	active := policy.IsActive
	pj := PolicyJSON{
		ID:                    string(policy.ID),
		Name:                  policy.Name,
		Description:           policy.Description,
		RetentionPercentage:   generic.NewFlexAmount(policy.RetentionPercentage),
		ReleaseType:           string(policy.ReleaseType),
		DefectLiabilityPeriod: policy.DefectLiabilityPeriod,
		WarrantyPeriod:        policy.WarrantyPeriod,
		ScheduleAnchor:        string(policy.ScheduleAnchor),
		IsDefault:             policy.IsDefault,
		IsActive:              &active,
	}
	for _, t := range policy.Tiers {
		pj.Tiers = append(pj.Tiers, TierJSON{
			Threshold:  generic.NewFlexAmount(t.Threshold),
			Percentage: generic.NewFlexAmount(t.Percentage),
		})
	}
	for _, t := range policy.ReleaseSchedule {
		pj.ReleaseSchedule = append(pj.ReleaseSchedule, TrancheJSON{
			Percentage: generic.NewFlexAmount(t.Percentage),
			EventType:  string(t.EventType),
			DaysAfter:  t.DaysAfter,
		})
	}
	return pj
}

// =============================================================================
// CATALOG
// =============================================================================

// LoadCatalog reads a YAML (or JSON) catalog of policies. The first invalid
// policy aborts the load; nothing partial is returned.
func (f *PolicyFactory) LoadCatalog(r io.Reader) ([]retention.Policy, error) {
	var catalog CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse policy catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Policies))
	policies := make([]retention.Policy, 0, len(catalog.Policies))
	for i, pj := range catalog.Policies {
		if pj.ID == "" {
			return nil, fmt.Errorf("policy #%d (%q): id is required", i+1, pj.Name)
		}
		if seen[pj.ID] {
			return nil, fmt.Errorf("policy %s: %w", pj.ID, retention.ErrDuplicateID)
		}
		seen[pj.ID] = true

		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// WriteCatalog encodes policies as a YAML catalog.
func (f *PolicyFactory) WriteCatalog(w io.Writer, policies []retention.Policy) error {
	catalog := CatalogFile{Policies: make([]PolicyJSON, 0, len(policies))}
	for _, p := range policies {
		catalog.Policies = append(catalog.Policies, f.ToJSON(p))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalog); err != nil {
		return err
	}
	return enc.Close()
}
