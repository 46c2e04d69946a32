package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Registry RegistryConfig
	DB       DBConfig
	Relay    RelayConfig
	NATS     NATSConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string
	// PublicURL 是用戶端連線中繼時使用的外部位址，空白時依請求推算
	PublicURL string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type RegistryConfig struct {
	// Driver 為 memory 或 postgres
	Driver        string
	RoomTTL       time.Duration
	SweepInterval time.Duration
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	TimeZone string
}

type RelayConfig struct {
	Enabled       bool
	RatePerSecond float64
	Burst         int
}

type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

type AuthConfig struct {
	Secret       string
	Issuer       string
	RelayTTL     time.Duration
	ModeratorTTL time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowedorigins", []string{"*"})
	v.SetDefault("server.publicurl", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("registry.driver", "memory")
	v.SetDefault("registry.roomttl", 6*time.Hour)
	v.SetDefault("registry.sweepinterval", 5*time.Minute)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "debate_timer")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.timezone", "Asia/Seoul")

	v.SetDefault("relay.enabled", true)
	v.SetDefault("relay.ratepersecond", 20.0)
	v.SetDefault("relay.burst", 40)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subjectprefix", "relay")
	v.SetDefault("nats.maxreconnects", -1)
	v.SetDefault("nats.reconnectwait", 2*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "debate-timer")
	v.SetDefault("auth.relayttl", time.Hour)
	v.SetDefault("auth.moderatorttl", 24*time.Hour)
}

// Load 讀取 ./pkg/config/config.yaml，環境變數 DEBATE_* 優先，例如 DEBATE_SERVER_ADDRESS
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./pkg/config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("DEBATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 檢查必要的設定
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required (DEBATE_AUTH_SECRET)")
	}
	switch c.Registry.Driver {
	case "memory", "postgres":
	default:
		return errors.New("registry.driver must be memory or postgres")
	}
	if c.Registry.RoomTTL <= 0 || c.Registry.SweepInterval <= 0 {
		return errors.New("registry.roomttl and registry.sweepinterval must be positive")
	}
	return nil
}
