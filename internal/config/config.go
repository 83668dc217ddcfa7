package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal images

	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

type Config struct {
	Env       string `mapstructure:"app_env"`
	HTTPAddr  string `mapstructure:"http_addr"`
	PublicURL string `mapstructure:"public_url"`

	DBDriver string `mapstructure:"db_driver"` // sqlite|postgres
	DBDSN    string `mapstructure:"db_dsn"`

	BlobBasePath string `mapstructure:"blob_base_path"`

	AuthSecret  string        `mapstructure:"auth_hmac_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	CORSOrigins []string      `mapstructure:"cors_origins"`

	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`

	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
	LessonSessionTTL time.Duration `mapstructure:"lesson_session_ttl"`
	LessonHearts     int           `mapstructure:"lesson_hearts"`
	StreakSweepSpec  string        `mapstructure:"streak_sweep_spec"`

	ExamQuestionCount int           `mapstructure:"exam_question_count"`
	ExamTimeLimit     time.Duration `mapstructure:"exam_time_limit"`

	// TimeZone decides where a streak day starts and ends.
	TimeZone string         `mapstructure:"time_zone"`
	Location *time.Location `mapstructure:"-"`

	GoogleTTSVoice string `mapstructure:"google_tts_voice"`
}

func (c Config) Production() bool { return c.Env == "production" }

const devSecret = "tepiprep-dev-secret-change-me"

// Load reads config/config.yaml when present, then environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("app_env", "local")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("blob_base_path", "./data/storage")
	v.SetDefault("auth_hmac_secret", "")
	v.SetDefault("token_ttl", "72h")
	v.SetDefault("cors_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("stats_cache_ttl", "3m")
	v.SetDefault("lesson_session_ttl", "2h")
	v.SetDefault("lesson_hearts", 3)
	v.SetDefault("streak_sweep_spec", "5 0 * * *")
	v.SetDefault("exam_question_count", 200)
	v.SetDefault("exam_time_limit", "120m")
	v.SetDefault("time_zone", "Europe/Paris")
	v.SetDefault("google_tts_voice", "en-US-Neural2-F")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.CORSOrigins = cleanList(cfg.CORSOrigins)

	if cfg.AuthSecret == "" {
		if cfg.Production() {
			return nil, ErrMissingEnvironmentVariables
		}
		cfg.AuthSecret = devSecret
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported db_driver %q", cfg.DBDriver)
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc
	if cfg.LessonHearts <= 0 {
		cfg.LessonHearts = 3
	}
	return &cfg, nil
}

// cleanList splits comma-joined entries and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
