// Package config loads the optional YAML file overriding search parameters.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LyricZhao/DLMO/internal/analysis"
	"github.com/LyricZhao/DLMO/internal/search"
)

type Config struct {
	MemoryFactor         float64 `yaml:"memory_factor"`
	TimeFactor           float64 `yaml:"time_factor"`
	ReconsiderRatio      float64 `yaml:"reconsider_ratio"`
	TimeRequirementRatio float64 `yaml:"time_requirement_ratio"`

	SearchLimit    int `yaml:"search_limit"`
	QueueSizeLimit int `yaml:"queue_size_limit"`
	PrintFrequency int `yaml:"print_frequency"`

	ReGenTaskLimit  int `yaml:"re_gen_task_limit"`
	O1OccupiesLimit int `yaml:"o1_occupies_limit"`
	O2OccupiesLimit int `yaml:"o2_occupies_limit"`
	TimesPerRandom  int `yaml:"times_per_random"`

	RandomSeed int64 `yaml:"random_seed"`
}

func Default() Config {
	return Config{
		MemoryFactor:         search.MemoryFactor,
		TimeFactor:           search.TimeFactor,
		ReconsiderRatio:      search.ReconsiderRatio,
		TimeRequirementRatio: search.TimeRequirementRatio,
		SearchLimit:          search.SearchLimit,
		QueueSizeLimit:       search.QueueSizeLimit,
		PrintFrequency:       search.PrintFrequency,
		ReGenTaskLimit:       analysis.ReGenTaskLimit,
		O1OccupiesLimit:      analysis.O1OccupiesLimit,
		O2OccupiesLimit:      analysis.O2OccupiesLimit,
		TimesPerRandom:       analysis.TimesPerRandom,
	}
}

// Load overlays the file onto the defaults, so a partial config only
// overrides what it mentions.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// SearchOptions maps the config onto one search run.
func (c Config) SearchOptions(limit uint64) search.Options {
	opts := search.DefaultOptions(limit, c.RandomSeed)
	opts.SearchLimit = c.SearchLimit
	opts.QueueSizeLimit = c.QueueSizeLimit
	opts.PrintFrequency = c.PrintFrequency
	opts.MemoryFactor = c.MemoryFactor
	opts.TimeFactor = c.TimeFactor
	opts.ReconsiderRatio = c.ReconsiderRatio
	opts.TimeRequirementRatio = c.TimeRequirementRatio
	opts.Candidates.ReGenTaskLimit = c.ReGenTaskLimit
	opts.Candidates.O1OccupiesLimit = c.O1OccupiesLimit
	opts.Candidates.O2OccupiesLimit = c.O2OccupiesLimit
	opts.Candidates.TimesPerRandom = c.TimesPerRandom
	return opts
}
