// Package config loads threadload settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/srodi/threadload/pkg/monitor"
	"github.com/srodi/threadload/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. THREADLOAD_LOG_LEVEL.
const EnvPrefix = "THREADLOAD"

// Config is the resolved configuration.
type Config struct {
	Interval time.Duration `mapstructure:"interval"`
	PID      int           `mapstructure:"pid"`
	ProcRoot string        `mapstructure:"proc_root"`
	BPF      BPFConfig     `mapstructure:"bpf"`
	TopK     int           `mapstructure:"top_k"`
	Filter   string        `mapstructure:"filter"`
	HideIdle bool          `mapstructure:"hide_idle"`
	Warmup   time.Duration `mapstructure:"warmup"`
	Log      LogConfig     `mapstructure:"log"`
	Serve    ServeConfig   `mapstructure:"serve"`
}

type BPFConfig struct {
	Object string `mapstructure:"object"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServeConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("interval", monitor.DefaultInterval)
	v.SetDefault("pid", 0)
	v.SetDefault("proc_root", "/proc")
	v.SetDefault("bpf.object", "")
	v.SetDefault("top_k", types.DefaultTopK)
	v.SetDefault("filter", "")
	v.SetDefault("hide_idle", false)
	v.SetDefault("warmup", 2*monitor.DefaultInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("serve.listen", ":9464")
	v.SetDefault("serve.path", "/metrics")
}

// Load resolves the configuration held by v. When file is set it is read
// first; flags bound to v and THREADLOAD_* variables take precedence over it.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if problems := cfg.Valid(); len(problems) > 0 {
		return cfg, &InvalidError{Problems: problems}
	}
	return cfg, nil
}

// Valid reports one problem per offending key.
func (c *Config) Valid() map[string]string {
	problems := make(map[string]string)

	if c.Interval <= 0 {
		problems["interval"] = "must be positive"
	}
	if c.PID < 0 {
		problems["pid"] = "cannot be negative"
	}
	if c.ProcRoot == "" {
		problems["proc_root"] = "cannot be empty"
	}
	if c.TopK < 0 {
		problems["top_k"] = "cannot be negative"
	}
	if c.Warmup < 0 {
		problems["warmup"] = "cannot be negative"
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		problems["log.level"] = fmt.Sprintf("unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "logfmt", "json":
	default:
		problems["log.format"] = fmt.Sprintf("unknown format %q", c.Log.Format)
	}
	if !strings.HasPrefix(c.Serve.Path, "/") {
		problems["serve.path"] = "must start with /"
	}

	return problems
}

// InvalidError lists the problems found by Valid.
type InvalidError struct {
	Problems map[string]string
}

func (e *InvalidError) Error() string {
	keys := make([]string, 0, len(e.Problems))
	for k := range e.Problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Problems[k])
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// IsInvalid reports whether err carries configuration problems.
func IsInvalid(err error) bool {
	var invalid *InvalidError
	return errors.As(err, &invalid)
}
