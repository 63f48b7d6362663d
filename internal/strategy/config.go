package strategy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrEmptyStrategy is returned when a config has no entry or exit conditions.
var ErrEmptyStrategy = errors.New("strategy has no conditions")

// ConditionSpec configures one condition.
type ConditionSpec struct {
	Type   string `yaml:"type"`
	Params Params `yaml:"params"`
}

// BlockSpec configures one side of a strategy.
type BlockSpec struct {
	Operator   string          `yaml:"operator"`
	Conditions []ConditionSpec `yaml:"conditions"`
}

// Config is a YAML strategy definition.
type Config struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Entry       BlockSpec `yaml:"entry"`
	Exit        BlockSpec `yaml:"exit"`
	Ranker      string    `yaml:"ranker"`
	RankerSeed  int64     `yaml:"ranker_seed"`
}

// LoadConfig reads a strategy definition from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML strategy definition.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse strategy: %w", err)
	}
	if len(cfg.Entry.Conditions) == 0 || len(cfg.Exit.Conditions) == 0 {
		return nil, ErrEmptyStrategy
	}
	return &cfg, nil
}

// Built is a strategy ready to hand to the engine.
type Built struct {
	Entry  *CompositeEntry
	Exit   *CompositeExit
	Ranker StockRanker
}

// Build resolves every configured condition through the registry.
func (c *Config) Build() (*Built, error) {
	entryOp, err := ParseOperator(c.Entry.Operator, And)
	if err != nil {
		return nil, fmt.Errorf("entry: %w", err)
	}
	exitOp, err := ParseOperator(c.Exit.Operator, Or)
	if err != nil {
		return nil, fmt.Errorf("exit: %w", err)
	}

	entries := make([]EntryCondition, 0, len(c.Entry.Conditions))
	for _, spec := range c.Entry.Conditions {
		cond, err := NewEntryCondition(spec.Type, spec.Params)
		if err != nil {
			return nil, err
		}
		entries = append(entries, cond)
	}
	exits := make([]ExitCondition, 0, len(c.Exit.Conditions))
	for _, spec := range c.Exit.Conditions {
		cond, err := NewExitCondition(spec.Type, spec.Params)
		if err != nil {
			return nil, err
		}
		exits = append(exits, cond)
	}

	ranker, err := NewRanker(c.Ranker, c.RankerSeed)
	if err != nil {
		return nil, err
	}
	return &Built{
		Entry:  NewCompositeEntry(c.Name, entryOp, entries...),
		Exit:   NewCompositeExit(c.Name, exitOp, exits...),
		Ranker: ranker,
	}, nil
}
