package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	RunLog    RunLogConfig    `yaml:"runlog" mapstructure:"runlog"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// WarehouseConfig configures the source data warehouse.
type WarehouseConfig struct {
	DatabaseURL       string `yaml:"database_url" mapstructure:"database_url"`
	EventsSchema      string `yaml:"events_schema" mapstructure:"events_schema"`
	EventsTablePrefix string `yaml:"events_table_prefix" mapstructure:"events_table_prefix"`
	EntityLinkTable   string `yaml:"entity_link_table" mapstructure:"entity_link_table"`
	CompanyLinkTable  string `yaml:"company_link_table" mapstructure:"company_link_table"`
	QueriesPerMinute  int    `yaml:"queries_per_minute" mapstructure:"queries_per_minute"`
}

// EventsConfig configures the yearly event pipeline.
type EventsConfig struct {
	KeywordsPath string  `yaml:"keywords_path" mapstructure:"keywords_path"`
	StartYear    int     `yaml:"start_year" mapstructure:"start_year"`
	EndYear      int     `yaml:"end_year" mapstructure:"end_year"`
	Timezone     string  `yaml:"timezone" mapstructure:"timezone"`
	CountryCode  string  `yaml:"country_code" mapstructure:"country_code"`
	MinRelevance float64 `yaml:"min_relevance" mapstructure:"min_relevance"`
}

// OutputConfig configures where filtered events are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Source      string `yaml:"source" mapstructure:"source"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	Table       string `yaml:"table" mapstructure:"table"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// RunLogConfig configures the local run history. An empty path places it in
// the output dir.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVENTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("warehouse.database_url", "")
	v.SetDefault("warehouse.events_schema", "ravenpack_dj")
	v.SetDefault("warehouse.events_table_prefix", "rpa_djpr_equities_")
	v.SetDefault("warehouse.entity_link_table", "rpna.wrds_company_names")
	v.SetDefault("warehouse.company_link_table", "comp.names")
	v.SetDefault("warehouse.queries_per_minute", 0)
	v.SetDefault("events.keywords_path", "keywords.txt")
	v.SetDefault("events.start_year", 2000)
	v.SetDefault("events.end_year", 2024)
	v.SetDefault("events.timezone", "America/New_York")
	v.SetDefault("events.country_code", "US")
	v.SetDefault("events.min_relevance", 75.0)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.source", "ravenpack_dj")
	v.SetDefault("output.database_url", "")
	v.SetDefault("output.schema", "events")
	v.SetDefault("output.table", "filtered_events")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("runlog.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: "run", "links".
func (c *Config) Validate(mode string) error {
	var problems []string
	switch mode {
	case "run":
		if c.Warehouse.DatabaseURL == "" {
			problems = append(problems, "warehouse.database_url is required")
		}
		if c.Events.KeywordsPath == "" {
			problems = append(problems, "events.keywords_path is required")
		}
		if c.Events.StartYear > c.Events.EndYear {
			problems = append(problems, "events.start_year must be <= events.end_year")
		}
		if c.Output.Dir == "" {
			problems = append(problems, "output.dir is required")
		}
		if c.Warehouse.QueriesPerMinute < 0 {
			problems = append(problems, "warehouse.queries_per_minute must be >= 0")
		}
	case "links":
		if c.Warehouse.DatabaseURL == "" {
			problems = append(problems, "warehouse.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
