package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// runConfig is the file form of a run. Keys match the run flags with
// dashes replaced by underscores.
type runConfig struct {
	Motif      string
	PWM        string
	Weights    string
	Background string
	Scores     string
	P          float64
	Samples    int
	Seed       int64
	Workers    int
	Streams    int
}

func defaultRunConfig() runConfig {
	return runConfig{P: 0.1, Samples: 10000, Seed: 1, Workers: 4}
}

func loadRunConfig(path string) (runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runConfig{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return runConfig{}, err
	}

	cfg := defaultRunConfig()
	if v, ok := asString(raw["motif"]); ok {
		cfg.Motif = v
	}
	if v, ok := asString(raw["pwm"]); ok {
		cfg.PWM = v
	}
	if v, ok := asString(raw["weights"]); ok {
		cfg.Weights = v
	}
	if v, ok := asString(raw["background"]); ok {
		cfg.Background = v
	}
	if v, ok := asString(raw["scores"]); ok {
		cfg.Scores = v
	}
	if v, ok := asFloat64(raw["p"]); ok {
		cfg.P = v
	}
	if v, ok := asInt(raw["samples"]); ok {
		cfg.Samples = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		cfg.Workers = v
	}
	if v, ok := asInt(raw["streams"]); ok {
		cfg.Streams = v
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags that were set explicitly on top of
// a loaded config.
func overrideFromFlags(cfg *runConfig, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "motif":
			cfg.Motif = v.(string)
		case "pwm":
			cfg.PWM = v.(string)
		case "weights":
			cfg.Weights = v.(string)
		case "background":
			cfg.Background = v.(string)
		case "scores":
			cfg.Scores = v.(string)
		case "p":
			cfg.P = v.(float64)
		case "samples":
			cfg.Samples = v.(int)
		case "seed":
			cfg.Seed = v.(int64)
		case "workers":
			cfg.Workers = v.(int)
		case "streams":
			cfg.Streams = v.(int)
		}
	}
}

func loadOrDefaultRunConfig(configPath string) (runConfig, error) {
	if configPath == "" {
		return defaultRunConfig(), nil
	}
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		return runConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c runConfig) validate() error {
	if c.PWM == "" {
		return errors.New("run requires a pwm file")
	}
	if c.Scores == "" {
		return errors.New("run requires a scores file")
	}
	if c.P < 0 || c.P >= 1 {
		return fmt.Errorf("p must be in [0, 1), got %g", c.P)
	}
	if c.Samples <= 0 {
		return errors.New("samples must be > 0")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.Streams < 0 {
		return errors.New("streams must be >= 0")
	}
	return nil
}
