// Package config loads and validates one collection cycle's configuration:
// a CUE schema (config/schema.cue) declares the recognized options, and a
// YAML override file supplies the concrete values for a run. CUE is loaded
// and built first so the schema's defaults and enum constraints are in
// effect, then the YAML override is unified into it via the CUE API — a
// validate-before-unify order that keeps overrides honest against the
// schema's own types and bounds.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// RateLimit mirrors config/schema.cue's api.rate_limit block.
type RateLimit struct {
	ShortWindowLimit   int `json:"short_window_limit" yaml:"short_window_limit"`
	ShortWindowSeconds int `json:"short_window_seconds" yaml:"short_window_seconds"`
	LongWindowLimit    int `json:"long_window_limit" yaml:"long_window_limit"`
	LongWindowSeconds  int `json:"long_window_seconds" yaml:"long_window_seconds"`
}

// Config is the fully validated, defaulted configuration for one cycle,
// decoded from the unified CUE value. Both json and
// yaml tags are declared: cue.Value.Decode matches Go struct fields by
// their json tag, while the yaml tag keeps the same struct usable as a
// plain YAML decode target.
type Config struct {
	// CollectionDate is one cycle id or a list of them; the schema admits
	// both shapes, so it decodes as any and CycleIDs normalizes it.
	CollectionDate any `json:"collection_date" yaml:"collection_date"`

	API struct {
		Region    string    `json:"region" yaml:"region"`
		RateLimit RateLimit `json:"rate_limit" yaml:"rate_limit"`
	} `json:"api" yaml:"api"`

	Collection struct {
		Mode  string   `json:"mode" yaml:"mode"`
		Tiers []string `json:"tiers" yaml:"tiers"`
	} `json:"collection" yaml:"collection"`

	Quality struct {
		QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`
	} `json:"quality" yaml:"quality"`

	Backup struct {
		AutoBackup    bool `json:"auto_backup" yaml:"auto_backup"`
		RetentionDays int  `json:"retention_days" yaml:"retention_days"`
	} `json:"backup" yaml:"backup"`
}

// Load builds the CUE schema at schemaDir, unifies overridePath's YAML into
// it, validates the result, and decodes it into a Config.
func Load(schemaDir, overridePath string) (*Config, error) {
	ctx := cuecontext.New()

	cfg := &load.Config{Dir: schemaDir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("config: no CUE instances found in %s", schemaDir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("config: loading schema: %w", inst.Err)
	}

	schemaValue := ctx.BuildInstance(inst)
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("config: building schema: %w", err)
	}

	overrideData, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("config: read override file: %w", err)
	}

	// Unmarshaled with gopkg.in/yaml.v3 directly (rather than cuelang's own
	// encoding/yaml) into a generic map; the result is then handed to
	// CUE as a plain value for unification and schema validation.
	var overrideMap map[string]any
	if err := yaml.Unmarshal(overrideData, &overrideMap); err != nil {
		return nil, fmt.Errorf("config: parse override YAML: %w", err)
	}
	overrideValue := ctx.Encode(overrideMap)
	if err := overrideValue.Err(); err != nil {
		return nil, fmt.Errorf("config: building override value: %w", err)
	}

	configField := schemaValue.LookupPath(cue.ParsePath("config"))
	if !configField.Exists() {
		return nil, fmt.Errorf("config: schema %s does not declare a top-level 'config' value", schemaDir)
	}

	unified := configField.Unify(overrideValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &out, nil
}

// CycleIDs normalizes collection_date into a list: a single cycle id
// becomes a one-element slice, a list passes through in order.
func (c *Config) CycleIDs() []string {
	switch v := c.CollectionDate.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Tiers converts the configured tier strings into model.Tier values. An
// empty list means the full ranked matrix.
func (c *Config) Tiers() []model.Tier {
	tiers := make([]model.Tier, 0, len(c.Collection.Tiers))
	for _, t := range c.Collection.Tiers {
		tiers = append(tiers, model.Tier(t))
	}
	return tiers
}

// CollectionMethod maps the validated collection.mode string onto
// model.CollectionMethod.
func (c *Config) CollectionMethod() model.CollectionMethod {
	switch c.Collection.Mode {
	case "weekly":
		return model.MethodWeekly
	default:
		return model.MethodDaily
	}
}

var regionCaser = cases.Upper(language.Und)

// NormalizedRegion folds the configured region code to a single canonical
// upper-case form. A cycle's Registry rows and its artifact's
// extraction_location must agree on one form regardless of how the
// override file spelled it.
func (c *Config) NormalizedRegion() string {
	return regionCaser.String(c.API.Region)
}
