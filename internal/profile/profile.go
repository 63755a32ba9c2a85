// Package profile loads layout profiles: YAML files that tune the label
// dictionary, the extractor and the export column order for one family of
// documents.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
)

// Label adds spellings for a canonical key.
type Label struct {
	Key               string   `yaml:"key"`
	Spellings         []string `yaml:"spellings"`
	DuplicatedSection bool     `yaml:"duplicated_section"`
}

// Profile is a decoded layout profile. Unset fields keep the built-in
// behavior.
type Profile struct {
	Name                    string   `yaml:"name"`
	ResidentialRowThreshold *int     `yaml:"residential_row_threshold"`
	KeepUnmapped            *bool    `yaml:"keep_unmapped"`
	PriorityColumns         []string `yaml:"priority_columns"`
	TriggerLabels           []string `yaml:"trigger_labels"`
	ExtraLabels             []Label  `yaml:"extra_labels"`
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.json", bytes.NewReader([]byte(schemaJSON))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("profile.json")
})

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError(common.CodeProfile, path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, common.NewAppError(common.CodeProfile, path, err)
	}
	return p, nil
}

// Parse validates YAML data against the profile schema and decodes it.
func Parse(data []byte) (*Profile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round-trip through JSON so the validator sees plain JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("profile is not a mapping of plain values: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Dictionary returns the built-in dictionary extended with the profile's
// labels. Profile triggers are added to the built-in ones.
func (p *Profile) Dictionary() (*fields.Dictionary, error) {
	if p == nil || (len(p.ExtraLabels) == 0 && len(p.TriggerLabels) == 0) {
		return fields.Default(), nil
	}
	entries := make([]fields.Entry, 0, len(p.ExtraLabels))
	for _, l := range p.ExtraLabels {
		entries = append(entries, fields.Entry{
			Key:               l.Key,
			Spellings:         l.Spellings,
			DuplicatedSection: l.DuplicatedSection,
		})
	}
	var triggers []string
	if len(p.TriggerLabels) > 0 {
		triggers = append(slices.Clone(fields.DefaultTriggers), p.TriggerLabels...)
	}
	d, err := fields.Default().Extend(entries, triggers)
	if err != nil {
		return nil, common.NewAppError(common.CodeProfile, p.Name, fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	return d, nil
}

// ExtractorOptions overlays the profile on base.
func (p *Profile) ExtractorOptions(base fields.Options) fields.Options {
	if p == nil {
		return base
	}
	if p.ResidentialRowThreshold != nil {
		base.ResidentialRowThreshold = *p.ResidentialRowThreshold
	}
	if p.KeepUnmapped != nil {
		base.KeepUnmapped = *p.KeepUnmapped
	}
	return base
}

// Priority returns the export column priority.
func (p *Profile) Priority() []string {
	if p == nil || len(p.PriorityColumns) == 0 {
		return slices.Clone(constants.DefaultPriorityColumns)
	}
	return slices.Clone(p.PriorityColumns)
}
