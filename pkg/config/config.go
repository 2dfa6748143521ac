package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"FinFactor/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Log         LogConfig        `yaml:"log"`
	Factor      FactorConfig     `yaml:"factor"`
	Analysis    AnalysisConfig   `yaml:"analysis"`
	Source      string           `yaml:"source" default:"finnhub" validate:"oneof=finnhub clickhouse"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Cache       CacheConfig      `yaml:"cache"`
	Sink        string           `yaml:"sink" default:"none" validate:"oneof=none kafka clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Server      ServerConfig     `yaml:"server"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stderr"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
	MaxAgeDays int    `yaml:"max_age_days" default:"14"`
}

type FactorConfig struct {
	Assets     []string          `yaml:"assets" default:"[\"EURUSD\",\"USDJPY\",\"GBPUSD\",\"USDCHF\",\"AUDUSD\",\"USDCAD\",\"NZDUSD\"]" validate:"min=1,dive,required"`
	AssetClass string            `yaml:"asset_class" default:"forex" validate:"oneof=forex stock crypto"`
	Lookback   int               `yaml:"lookback" default:"360" validate:"gt=1"`
	Period     int               `yaml:"period" default:"30" validate:"gt=0,ltfield=Lookback"`
	Resolution string            `yaml:"resolution" default:"daily" validate:"oneof=daily hour minute"`
	Groups     map[string]string `yaml:"groups"`
}

type AnalysisConfig struct {
	Periods      []int   `yaml:"periods" default:"[1,5,10]" validate:"min=1,dive,gt=0"`
	Quantiles    int     `yaml:"quantiles" default:"5" validate:"gte=2,lte=20"`
	MaxLoss      float64 `yaml:"max_loss" default:"0.1" validate:"gt=0,lte=1"`
	FilterZScore float64 `yaml:"filter_zscore" default:"20" validate:"gte=0"`
	LongShort    bool    `yaml:"long_short" default:"true"`
	GroupNeutral bool    `yaml:"group_neutral"`
	ByGroup      bool    `yaml:"by_group"`
	HeadRows     int     `yaml:"head_rows" default:"5" validate:"gte=0"`
}

type FinnhubConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
	Venue      string        `yaml:"venue" default:"OANDA"`
	Timeout    time.Duration `yaml:"timeout" default:"15s"`
	RatePerSec float64       `yaml:"rate_per_sec" default:"1" validate:"gte=0"`
	Burst      int           `yaml:"burst" default:"5" validate:"gte=1"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"market"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	CandlesTable     string        `yaml:"candles_table" default:"candles_1d"`
	FactorTable      string        `yaml:"factor_table" default:"factor_data"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
}

type CacheConfig struct {
	Mode      string        `yaml:"mode" default:"memory" validate:"oneof=none memory redis layered"`
	TTL       time.Duration `yaml:"ttl" default:"6h"`
	MaxSize   int           `yaml:"max_size" default:"256" validate:"gte=1"`
	RedisHost string        `yaml:"redis_host" default:"localhost"`
	RedisPort int           `yaml:"redis_port" default:"6379"`
	RedisDB   int           `yaml:"redis_db"`
	Password  string        `yaml:"redis_password"`
	Prefix    string        `yaml:"prefix" default:"finfactor"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string        `yaml:"topic" default:"factor-data"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	BatchSize    int           `yaml:"batch_size" default:"500"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// POST /api/refresh budget per client IP; 0 disables
	RefreshRate  float64 `yaml:"refresh_rate" default:"0.1" validate:"gte=0"`
	RefreshBurst int     `yaml:"refresh_burst" default:"2" validate:"gte=1"`
}

// Load reads a YAML file, applies defaults and env overrides, then validates.
// An empty path yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	var c Config
	// defaults first so explicit false/0 in the file survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("ASSETS"); v != "" {
		c.Factor.Assets = util.SplitList(v)
	}
	if v := getenv("SOURCE"); v != "" {
		c.Source = v
	}
	if v := getenv("SINK"); v != "" {
		c.Sink = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

var validate = validator.New()

// Validate runs struct tags and the cross-section rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source == "finnhub" && c.Finnhub.APIKey == "" {
		return errors.New("finnhub.api_key is required when source is finnhub (or set FINNHUB_API_KEY)")
	}
	if c.Sink == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when sink is kafka")
	}
	return nil
}
