package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deltasync/deltasync/indexsyncerrors"
)

// AllowedGroup is one authorization-group descriptor: a group name plus
// the variable bindings it carries.
type AllowedGroup struct {
	Name      string            `yaml:"name" json:"name"`
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// AllowedGroups is an order-independent set, kept in whatever order it
// was read; callers needing identity must canonicalize (see Canonical).
type AllowedGroups []AllowedGroup

type yamlTypeDefinition struct {
	RDFTypes       []string                       `yaml:"rdf_types"`
	Properties     map[string]*PropertyDefinition `yaml:"properties"`
	CompositeTypes []string                       `yaml:"composite_types"`
	Mappings       map[string]any                 `yaml:"mappings"`
	Settings       map[string]any                 `yaml:"settings"`
}

// Raw mirrors the recognized top-level configuration keys.
type Raw struct {
	TypeDefinitions      map[string]yamlTypeDefinition `yaml:"type_definitions"`
	PersistIndexes       bool                          `yaml:"persist_indexes"`
	AdditiveIndexes      bool                          `yaml:"additive_indexes"`
	EagerIndexingGroups  []AllowedGroups               `yaml:"eager_indexing_groups"`
	NumberOfThreads      int                           `yaml:"number_of_threads"`
	BatchSize            int                           `yaml:"batch_size"`
	MaxBatches           int                           `yaml:"max_batches"`
	AttachmentPathBase   string                        `yaml:"attachment_path_base"`
	DefaultIndexSettings map[string]any                `yaml:"default_index_settings"`
	MaximumFileSize      int64                         `yaml:"maximum_file_size"`
}

// Config is the resolved, ready-to-use configuration: a typed Model plus
// the registry/manager/handler tuning knobs.
type Config struct {
	Model *Model

	PersistIndexes       bool
	AdditiveIndexes      bool
	EagerIndexingGroups  []AllowedGroups
	NumberOfThreads      int
	BatchSize            int
	MaxBatches           int
	AttachmentPathBase   string
	DefaultIndexSettings map[string]any
	MaximumFileSize      int64
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", indexsyncerrors.ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML bytes into a Config.
func Parse(data []byte) (*Config, error) {
	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", indexsyncerrors.ErrConfig, err)
	}

	model := &Model{Types: make(map[string]*TypeDefinition, len(raw.TypeDefinitions))}
	for name, yd := range raw.TypeDefinitions {
		if len(yd.RDFTypes) == 0 {
			return nil, fmt.Errorf("%w: type_definitions.%s: rdf_types must be non-empty", indexsyncerrors.ErrConfig, name)
		}
		model.Types[name] = &TypeDefinition{
			TypeName:       name,
			RDFTypes:       yd.RDFTypes,
			Properties:     yd.Properties,
			CompositeTypes: yd.CompositeTypes,
			Mappings:       yd.Mappings,
			Settings:       yd.Settings,
		}
	}
	for name, td := range model.Types {
		for _, sub := range td.CompositeTypes {
			if _, ok := model.Types[sub]; !ok {
				return nil, fmt.Errorf("%w: type_definitions.%s: composite_types references unknown type %q", indexsyncerrors.ErrConfig, name, sub)
			}
		}
	}

	cfg := &Config{
		Model:                model,
		PersistIndexes:       raw.PersistIndexes,
		AdditiveIndexes:      raw.AdditiveIndexes,
		EagerIndexingGroups:  raw.EagerIndexingGroups,
		NumberOfThreads:      raw.NumberOfThreads,
		BatchSize:            raw.BatchSize,
		MaxBatches:           raw.MaxBatches,
		AttachmentPathBase:   raw.AttachmentPathBase,
		DefaultIndexSettings: raw.DefaultIndexSettings,
		MaximumFileSize:      raw.MaximumFileSize,
	}
	if cfg.NumberOfThreads <= 0 {
		cfg.NumberOfThreads = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 10
	}
	return cfg, nil
}
