package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Query  QueryConfig  `yaml:"query" mapstructure:"query"`
	Scorer ScorerConfig `yaml:"scorer" mapstructure:"scorer"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Redis  RedisConfig  `yaml:"redis" mapstructure:"redis"`
	GeoIP  GeoIPConfig  `yaml:"geoip" mapstructure:"geoip"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig selects and configures the dataset source.
type DataConfig struct {
	// Driver is one of "file", "shapefile", "postgres", "sqlite", "s3".
	Driver       string            `yaml:"driver" mapstructure:"driver"`
	PointsPath   string            `yaml:"points_path" mapstructure:"points_path"`
	PolygonsPath string            `yaml:"polygons_path" mapstructure:"polygons_path"`
	Shapefiles   map[string]string `yaml:"shapefiles" mapstructure:"shapefiles"` // aspect -> .shp path
	DatabaseURL  string            `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath   string            `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	S3           S3Config          `yaml:"s3" mapstructure:"s3"`
	CacheTTLSecs int               `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// S3Config locates the dataset in an S3-compatible bucket.
type S3Config struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey   string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey   string `yaml:"secret_key" mapstructure:"secret_key"`
	UseSSL      bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	PointsKey   string `yaml:"points_key" mapstructure:"points_key"`
	PolygonsKey string `yaml:"polygons_key" mapstructure:"polygons_key"`
}

// QueryConfig bounds incoming queries.
type QueryConfig struct {
	DefaultRadiusM float64 `yaml:"default_radius_m" mapstructure:"default_radius_m"`
	MaxRadiusM     float64 `yaml:"max_radius_m" mapstructure:"max_radius_m"`
	// PreferencesPath points at a YAML or JSON category -> good/bad map. It is
	// read separately because viper lowercases map keys and categories are
	// case-sensitive.
	PreferencesPath string `yaml:"preferences_path" mapstructure:"preferences_path"`
}

// ScorerConfig holds the intensities of the scoring curves.
type ScorerConfig struct {
	TransitRho float64 `yaml:"transit_rho" mapstructure:"transit_rho"`
	ElementRho float64 `yaml:"element_rho" mapstructure:"element_rho"`
	SchoolBand float64 `yaml:"school_band" mapstructure:"school_band"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// RedisConfig enables the shared report cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// GeoIPConfig points at a MaxMind City database used to locate callers by IP.
// An empty Path disables IP lookup.
type GeoIPConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional .env file, an optional
// config.yaml, and HABITAT_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("config: no .env file loaded", zap.Error(err))
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HABITAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.driver", "file")
	v.SetDefault("data.points_path", "static/data/features.json")
	v.SetDefault("data.polygons_path", "static/data/features_poly.json")
	v.SetDefault("data.cache_ttl_secs", 300)
	v.SetDefault("query.default_radius_m", 1000.0)
	v.SetDefault("query.max_radius_m", 5000.0)
	v.SetDefault("scorer.transit_rho", 1.0)
	v.SetDefault("scorer.element_rho", 0.6)
	v.SetDefault("scorer.school_band", 10.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("data.database_url", "")
	v.SetDefault("data.sqlite_path", "")
	v.SetDefault("data.s3.endpoint", "")
	v.SetDefault("data.s3.access_key", "")
	v.SetDefault("data.s3.secret_key", "")
	v.SetDefault("data.s3.use_ssl", false)
	v.SetDefault("data.s3.bucket", "")
	v.SetDefault("data.s3.points_key", "features.json")
	v.SetDefault("data.s3.polygons_key", "features_poly.json")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_secs", 600)
	v.SetDefault("geoip.path", "")
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

// Validate checks that the settings required by the given mode are present.
// Modes: "serve" (HTTP server) and "query" (one-shot CLI commands).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
	case "query":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Data.Driver {
	case "file":
		if c.Data.PointsPath == "" {
			errs = append(errs, "data.points_path is required")
		}
		if c.Data.PolygonsPath == "" {
			errs = append(errs, "data.polygons_path is required")
		}
	case "shapefile":
		if c.Data.PointsPath == "" {
			errs = append(errs, "data.points_path is required")
		}
		if len(c.Data.Shapefiles) == 0 {
			errs = append(errs, "data.shapefiles is required")
		}
	case "postgres":
		if c.Data.DatabaseURL == "" {
			errs = append(errs, "data.database_url is required")
		}
	case "sqlite":
		if c.Data.SQLitePath == "" {
			errs = append(errs, "data.sqlite_path is required")
		}
	case "s3":
		if c.Data.S3.Endpoint == "" {
			errs = append(errs, "data.s3.endpoint is required")
		}
		if c.Data.S3.Bucket == "" {
			errs = append(errs, "data.s3.bucket is required")
		}
		if c.Data.S3.AccessKey == "" || c.Data.S3.SecretKey == "" {
			errs = append(errs, "data.s3.access_key and data.s3.secret_key are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("data.driver %q is not one of file, shapefile, postgres, sqlite, s3", c.Data.Driver))
	}

	if c.Redis.Addr != "" && c.Redis.TTLSecs <= 0 {
		errs = append(errs, "redis.ttl_secs must be > 0")
	}

	if c.Query.MaxRadiusM <= 0 {
		errs = append(errs, "query.max_radius_m must be > 0")
	}
	if c.Query.DefaultRadiusM <= 0 || c.Query.DefaultRadiusM > c.Query.MaxRadiusM {
		errs = append(errs, "query.default_radius_m must be in (0, max_radius_m]")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
