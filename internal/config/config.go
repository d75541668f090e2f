// Package config loads the tabular runtime configuration from an optional
// JSON/YAML file, TABULAR_* environment variables and built-in defaults,
// in that order of precedence: env over file over defaults.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with '.' in the key
// replaced by '_' (TABULAR_QUERY_ROW_LIMIT overrides query.row_limit).
const EnvPrefix = "TABULAR"

// Config is the full runtime configuration shared by the binaries.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Query struct {
		RowLimit int `mapstructure:"row_limit"`
	} `mapstructure:"query"`

	Inference struct {
		SampleRows int `mapstructure:"sample_rows"`
	} `mapstructure:"inference"`

	Profile struct {
		SampleRows int `mapstructure:"sample_rows"`
		TopValues  int `mapstructure:"top_values"`
	} `mapstructure:"profile"`

	Ingest struct {
		Delimiter string `mapstructure:"delimiter"`
		Encoding  string `mapstructure:"encoding"`
	} `mapstructure:"ingest"`

	Import struct {
		RowLimit int `mapstructure:"row_limit"`
	} `mapstructure:"import"`

	Metrics struct {
		Backend    string        `mapstructure:"backend"`
		Job        string        `mapstructure:"job"`
		Tags       string        `mapstructure:"tags"`
		FlushEvery time.Duration `mapstructure:"flush_every"`

		// PushgatewayURL is used by the pushgateway backend.
		PushgatewayURL string `mapstructure:"pushgateway_url"`
	} `mapstructure:"metrics"`

	// Sources are named remote databases for table import.
	Sources map[string]Source `mapstructure:"sources"`
}

// Source is one named import connection.
type Source struct {
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("query.row_limit", 500)
	v.SetDefault("inference.sample_rows", 100)
	v.SetDefault("profile.sample_rows", 3)
	v.SetDefault("profile.top_values", 10)
	v.SetDefault("ingest.delimiter", ",")
	v.SetDefault("ingest.encoding", "")
	v.SetDefault("import.row_limit", 10000)
	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.job", "tabular")
	v.SetDefault("metrics.tags", "")
	v.SetDefault("metrics.flush_every", "60s")
	v.SetDefault("metrics.pushgateway_url", "http://localhost:9091")
}

// Load reads path (JSON or YAML, by extension) when non-empty and applies
// environment overrides and defaults. An empty path yields defaults plus
// environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Delimiter returns the CSV field separator. "tab" and "\t" both mean a
// tab character. Validate rejects anything that is not a single rune.
func (c Config) Delimiter() rune {
	d := c.Ingest.Delimiter
	switch d {
	case "tab", `\t`:
		return '\t'
	case "":
		return ','
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r
}
