package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database types accepted by -t
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMemory   = "memory"
)

type Config struct {
	Port              int           `yaml:"port"`
	DatabaseURL       string        `yaml:"database_url"`
	DatabaseType      string        `yaml:"database_type"`
	AdminKeySalt      string        `yaml:"admin_key_salt"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	CredentialTTL     time.Duration `yaml:"credential_ttl"`
	BallotWindow      time.Duration `yaml:"ballot_window"`
	MaxVerifyAttempts int           `yaml:"max_verify_attempts"`
	NatsURL           string        `yaml:"nats_url"`
	NatsSubjectPrefix string        `yaml:"nats_subject_prefix"`
	Debug             bool          `yaml:"debug"`
	ConfigFile        string        `yaml:"-"`

	// Voters is only read from the config file.
	Voters []VoterEntry `yaml:"voters"`
}

// VoterEntry seeds the voter directory at startup.
type VoterEntry struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	CardNumber   string `yaml:"card_number"`
	Jurisdiction string `yaml:"jurisdiction"`
}

// Defaults applied when neither flags, env nor the config file set a value
const (
	DefaultPort              = 3318
	DefaultSweepInterval     = time.Minute
	DefaultCredentialTTL     = 24 * time.Hour
	DefaultBallotWindow      = 15 * time.Minute
	DefaultMaxVerifyAttempts = 5
)

// ParseFlags validates flags and fills the rest from env and the config file.
// Precedence is flags, then environment (including .env), then -config YAML,
// then defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("quickly-elect", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or memory)")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML config file")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Engine tuning
	fs.DurationVar(&cfg.SweepInterval, "sweep", 0, "Status and results sweep interval")
	fs.DurationVar(&cfg.CredentialTTL, "credential-ttl", 0, "Voting credential lifetime")
	fs.DurationVar(&cfg.BallotWindow, "ballot-window", 0, "Time to cast a ballot after verifying a credential")
	fs.IntVar(&cfg.MaxVerifyAttempts, "max-attempts", -1, "Credential verification attempts before lockout (0 = unlimited)")

	// Notifications
	fs.StringVar(&cfg.NatsURL, "nats", "", "NATS server URL (empty logs notifications instead)")
	fs.StringVar(&cfg.NatsSubjectPrefix, "nats-prefix", "", "NATS subject prefix")

	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var file Config
	file.MaxVerifyAttempts = -1
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = os.Getenv("CONFIG_FILE")
	}
	if cfg.ConfigFile != "" {
		loaded, err := loadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		file = loaded
	}

	// Fall back to environment variables, then the config file
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else if file.Port != 0 {
			cfg.Port = file.Port
		} else {
			cfg.Port = DefaultPort
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = firstNonEmpty(os.Getenv("DATABASE_TYPE"), file.DatabaseType, DatabaseSQLite)
	}
	switch cfg.DatabaseType {
	case DatabaseSQLite, DatabasePostgres, DatabaseMemory:
	default:
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), file.DatabaseURL)
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseType != DatabaseMemory {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = firstNonEmpty(os.Getenv("ADMIN_KEY_SALT"), file.AdminKeySalt)
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	var err error
	if cfg.SweepInterval, err = durationSetting(cfg.SweepInterval, "SWEEP_INTERVAL", file.SweepInterval, DefaultSweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.CredentialTTL, err = durationSetting(cfg.CredentialTTL, "CREDENTIAL_TTL", file.CredentialTTL, DefaultCredentialTTL); err != nil {
		return Config{}, err
	}
	if cfg.BallotWindow, err = durationSetting(cfg.BallotWindow, "BALLOT_WINDOW", file.BallotWindow, DefaultBallotWindow); err != nil {
		return Config{}, err
	}

	if cfg.MaxVerifyAttempts < 0 {
		if s := os.Getenv("MAX_VERIFY_ATTEMPTS"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return Config{}, errors.New("invalid MAX_VERIFY_ATTEMPTS env variable")
			}
			cfg.MaxVerifyAttempts = n
		} else if file.MaxVerifyAttempts >= 0 {
			cfg.MaxVerifyAttempts = file.MaxVerifyAttempts
		} else {
			cfg.MaxVerifyAttempts = DefaultMaxVerifyAttempts
		}
	}

	if cfg.NatsURL == "" {
		cfg.NatsURL = firstNonEmpty(os.Getenv("NATS_URL"), file.NatsURL)
	}
	if cfg.NatsSubjectPrefix == "" {
		cfg.NatsSubjectPrefix = firstNonEmpty(os.Getenv("NATS_SUBJECT_PREFIX"), file.NatsSubjectPrefix)
	}

	if !cfg.Debug {
		cfg.Debug = file.Debug || os.Getenv("DEBUG") == "true"
	}

	for i, v := range file.Voters {
		if v.ID == "" || v.Email == "" || v.CardNumber == "" {
			return Config{}, fmt.Errorf("voter %d in config file needs id, email and card_number", i+1)
		}
	}
	cfg.Voters = file.Voters

	return cfg, nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Config{MaxVerifyAttempts: -1}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func durationSetting(flagValue time.Duration, env string, fileValue, def time.Duration) (time.Duration, error) {
	if flagValue > 0 {
		return flagValue, nil
	}
	if s := os.Getenv(env); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("invalid %s env variable", env)
		}
		return d, nil
	}
	if fileValue > 0 {
		return fileValue, nil
	}
	return def, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
