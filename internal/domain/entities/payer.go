package entities

import (
	"encoding/json"
	"strings"
)

// Payer is an insurance payer with its claim submission rules
type Payer struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	RulesConfig PayerRulesConfig `json:"rules_config" db:"rules_config"`
}

// PayerRulesConfig holds payer-specific submission rules.
// Unknown keys in the stored document are ignored.
type PayerRulesConfig struct {
	AllowedFrequencyTypes   []string `json:"allowed_frequency_types,omitempty"`
	RestrictedFacilityTypes []string `json:"restricted_facility_types,omitempty"`
}

// ParsePayerRulesConfig decodes a stored rules document and normalises its codes
func ParsePayerRulesConfig(raw []byte) (PayerRulesConfig, error) {
	var cfg PayerRulesConfig
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return PayerRulesConfig{}, err
	}
	cfg.AllowedFrequencyTypes = NormalizeCodes(cfg.AllowedFrequencyTypes)
	cfg.RestrictedFacilityTypes = NormalizeCodes(cfg.RestrictedFacilityTypes)
	return cfg, nil
}

// AllowsFrequencyType reports whether the frequency type is permitted.
// An empty allow-list permits everything.
func (c PayerRulesConfig) AllowsFrequencyType(frequencyType string) bool {
	if len(c.AllowedFrequencyTypes) == 0 {
		return true
	}
	return containsCode(c.AllowedFrequencyTypes, frequencyType)
}

// RestrictsFacilityType reports whether the facility type is on the restricted list
func (c PayerRulesConfig) RestrictsFacilityType(facilityType string) bool {
	return containsCode(c.RestrictedFacilityTypes, facilityType)
}

// NormalizeCode trims and upper-cases a code value
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCodes normalises codes and drops blanks
func NormalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := NormalizeCode(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsCode(codes []string, code string) bool {
	n := NormalizeCode(code)
	if n == "" {
		return false
	}
	for _, c := range codes {
		if c == n {
			return true
		}
	}
	return false
}
