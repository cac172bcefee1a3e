package config

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "RFM"

// Supported ingestion sources.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Policies for negative Monetary values in the clustering feature preparer.
const (
	NegativeClamp  = "clamp"
	NegativeReject = "reject"
)

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultDateLayouts are tried in order when parsing transaction dates.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07",
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Source    string `envconfig:"SOURCE" default:"csv" validate:"oneof=csv postgres"`
	InputPath string `envconfig:"INPUT_PATH" default:"./data/transactions.csv"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"rfm"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"rfm"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"ledger"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	PostgresTable    string `envconfig:"POSTGRES_TABLE" default:"transactions" validate:"required"`
	MaxRetries       int    `envconfig:"MAX_RETRIES" default:"3" validate:"min=1,max=20"`

	DateLayouts      []string `envconfig:"DATE_LAYOUTS"`
	NegativeMonetary string   `envconfig:"NEGATIVE_MONETARY" default:"clamp" validate:"oneof=clamp reject"`

	ScoredCSVPath   string `envconfig:"SCORED_CSV_PATH" default:"./output/rfm_scores.csv"`
	FeaturesCSVPath string `envconfig:"FEATURES_CSV_PATH" default:"./output/rfm_features.csv"`
	XLSXPath        string `envconfig:"XLSX_PATH"`
	MetricsPath     string `envconfig:"METRICS_PATH"`
	SegmentsPath    string `envconfig:"SEGMENTS_PATH"`

	Verbose bool `envconfig:"VERBOSE" default:"false"`
}

// Load reads the .env file, then RFM_* environment variables, and returns a
// validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = append([]string(nil), DefaultDateLayouts...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. It is called by Load and again by the
// CLI after flags have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.Source == SourceCSV && strings.TrimSpace(c.InputPath) == "" {
		return fmt.Errorf("config: invalid: InputPath is required for the csv source")
	}
	if !identRegexp.MatchString(c.PostgresTable) {
		return fmt.Errorf("config: invalid: PostgresTable %q is not a plain identifier", c.PostgresTable)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
