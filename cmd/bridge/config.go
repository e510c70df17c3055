package main

import (
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema is closed: unknown fields are rejected.
const configSchema = `
allow_threads?: bool
max_steps?:     int & >=0
log_level?:     "debug" | "info" | "warn" | "error"
globals?: [string]: bool | int | float | string | [...(bool | int | float | string)]
`

type bridgeConfig struct {
	Globals      map[string]any `json:"globals"`
	AllowThreads *bool          `json:"allow_threads"`
	LogLevel     string         `json:"log_level"`
	MaxSteps     uint64         `json:"max_steps"`
}

func defaultConfig() *bridgeConfig {
	return &bridgeConfig{LogLevel: "warn"}
}

// loadConfig reads a CUE file and validates it against configSchema.
// An empty path returns the defaults.
func loadConfig(path string) (*bridgeConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + configSchema + "})")
	if err := schema.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	value := ctx.CompileBytes(content, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, err
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	if err := unified.Decode(cfg); err != nil {
		return nil, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

func (c *bridgeConfig) allowThreads() bool {
	return c.AllowThreads == nil || *c.AllowThreads
}
