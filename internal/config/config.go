package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/analysis"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/bucket"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

type AspectConfig struct {
	Name            string `yaml:"name"`
	Strategy        string `yaml:"strategy"`
	Setting         string `yaml:"setting"`
	Precomputed     string `yaml:"precomputed,omitempty"`
	PrecomputedPath string `yaml:"precomputed_path,omitempty"`
}

type Config struct {
	Task    string         `yaml:"task"`
	Aspects []AspectConfig `yaml:"aspects"`
}

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Aspects) == 0 {
		return Config{}, fmt.Errorf("config %s defines no aspects", path)
	}
	for i, a := range cfg.Aspects {
		if strings.TrimSpace(a.Name) == "" {
			return Config{}, fmt.Errorf("config %s: aspect %d has no name", path, i)
		}
		if a.Precomputed != "" && !strings.EqualFold(a.Precomputed, "yes") && !strings.EqualFold(a.Precomputed, "no") {
			return Config{}, fmt.Errorf("config %s: aspect %s: precomputed must be yes or no", path, a.Name)
		}
		cfg.Aspects[i].PrecomputedPath = resolvePath(path, a.PrecomputedPath)
	}
	return cfg, nil
}

func resolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func Default(task types.Task) Config {
	switch task {
	case types.TaskNLI:
		return Config{Task: string(task), Aspects: []AspectConfig{
			{Name: aspect.SentALen, Strategy: bucket.NameSpecifiedValue, Setting: "4\t[]", Precomputed: "no"},
			{Name: aspect.SentBLen, Strategy: bucket.NameSpecifiedValue, Setting: "4\t[]", Precomputed: "no"},
			{Name: aspect.LenDiff, Strategy: bucket.NameSpecifiedValue, Setting: "3\t[0,1]", Precomputed: "no"},
			{Name: aspect.LenSum, Strategy: bucket.NameSpecifiedValue, Setting: "4\t[]", Precomputed: "no"},
			{Name: aspect.LenRatio, Strategy: bucket.NameSpecifiedValue, Setting: "2\t[1]", Precomputed: "no"},
			{Name: aspect.Tag, Strategy: bucket.NameDiscrete, Setting: "100\t1", Precomputed: "no"},
		}}
	default:
		return Config{Task: string(types.TaskClassification), Aspects: []AspectConfig{
			{Name: aspect.SentLen, Strategy: bucket.NameSpecifiedValue, Setting: "4\t[]", Precomputed: "no"},
			{Name: aspect.Tag, Strategy: bucket.NameDiscrete, Setting: "100\t1", Precomputed: "no"},
		}}
	}
}

// Specs turns the configuration into analysis inputs. An aspect whose
// strategy or precomputed values cannot be loaded is returned as a failure
// and left out of specs.
func (c Config) Specs() ([]analysis.AspectSpec, []*analysis.AspectError) {
	var (
		specs    []analysis.AspectSpec
		failures []*analysis.AspectError
	)
	for _, a := range c.Aspects {
		strategy, err := bucket.ParseStrategy(a.Strategy, a.Setting)
		if err != nil {
			failures = append(failures, &analysis.AspectError{Aspect: a.Name, Err: err})
			continue
		}
		spec := analysis.AspectSpec{Name: a.Name, Strategy: strategy}
		if strings.EqualFold(a.Precomputed, "yes") {
			if a.PrecomputedPath == "" {
				failures = append(failures, &analysis.AspectError{Aspect: a.Name, Err: fmt.Errorf("precomputed aspect needs precomputed_path")})
				continue
			}
			values, err := aspect.LoadPrecomputed(a.PrecomputedPath)
			if err != nil {
				failures = append(failures, &analysis.AspectError{Aspect: a.Name, Err: err})
				continue
			}
			spec.Precomputed = values
		}
		specs = append(specs, spec)
	}
	return specs, failures
}

func Marshal(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}
