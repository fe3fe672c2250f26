package infra

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xela07ax/condgate/internal/domain"
	"github.com/xela07ax/condgate/internal/gate"
)

// Config — корневая структура конфигурации condgated.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	GRPC     GRPCConfig            `mapstructure:"grpc"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Auth     AuthConfig            `mapstructure:"auth"`
	Registry RegistryConfig        `mapstructure:"registry"`
	Journal  JournalConfig         `mapstructure:"journal"`
	Logger   LoggerConfig          `mapstructure:"logger"`
	Gates    map[string]GateConfig `mapstructure:"gates"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GRPCConfig описывает gRPC-сервер и привязку методов к правилам.
type GRPCConfig struct {
	Port int `mapstructure:"port"`
	// Bindings: полное имя метода ("/pkg.Service/Method") -> имя правила
	Bindings map[string]string `mapstructure:"bindings"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub обновлений правил).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит путь к публичному RSA ключу (JWT с атрибутами) и хэш ключа админки.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	AdminKeyHash  string `mapstructure:"admin_key_hash"` // bcrypt
	PublicKey     []byte
}

// RegistryConfig — настройки загрузки правил из хранилища.
type RegistryConfig struct {
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RateLimit     float64       `mapstructure:"rate_limit"` // загрузок в секунду
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// JournalConfig — буфер и интервал сброса журнала решений.
type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// GateConfig — правило, заданное прямо в конфиге.
// included/excluded могут быть строкой ("Python, C") или списком.
type GateConfig struct {
	Attribute string `mapstructure:"attribute"`
	Included  any    `mapstructure:"included"`
	Excluded  any    `mapstructure:"excluded"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 2. ENV перекрывает файл: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ из ENV (Docker/K8s) или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("grpc.port", 50052)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("registry.retry_attempts", 3)
	v.SetDefault("registry.rate_limit", 5)
	v.SetDefault("registry.cb_timeout", 30*time.Second)
	v.SetDefault("journal.buffer_size", 10000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", 500*time.Millisecond)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Addr собирает адрес для net.Listen.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}

// Rules превращает секцию gates в правила. Ошибка, если included/excluded
// не строка и не список строк.
func (c *Config) Rules() ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(c.Gates))
	for name, gc := range c.Gates {
		r, err := gc.Rule(name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b domain.Rule) int { return strings.Compare(a.Name, b.Name) })
	return rules, nil
}

func (gc GateConfig) Rule(name string) (domain.Rule, error) {
	included, err := gate.FilterFrom(gc.Included)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("gates.%s.included: %w", name, err)
	}
	excluded, err := gate.FilterFrom(gc.Excluded)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("gates.%s.excluded: %w", name, err)
	}
	return domain.Rule{
		Name:          name,
		Attribute:     gc.Attribute,
		Included:      included.Tokens(),
		Excluded:      excluded.Tokens(),
		IncludeFilter: included,
		ExcludeFilter: excluded,
	}, nil
}
