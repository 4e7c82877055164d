package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

// Config - конфигурация приложения. Все роли (host, client, relay)
// читают одну структуру из переменных окружения.
type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Relay  RelayConfig
	Host   HostConfig
	Client ClientConfig

	StunURL string `env:"STUN_URL" envDefault:"stun:stun.l.google.com:19302"`

	TurnHost     string `env:"TURN_HOST"`
	TurnUsername string `env:"TURN_USERNAME"`
	TurnPassword string `env:"TURN_PASSWORD"`
}

// RelayConfig - настройки сигнального relay-сервера.
type RelayConfig struct {
	Port   string `env:"RELAY_PORT" envDefault:"7099"`
	Domain string `env:"RELAY_DOMAIN" envDefault:"http://localhost:7099"`

	// Пустой секрет отключает проверку JWT на /ws - режим для
	// локальной сети и тестов.
	JWTSecret   string `env:"RELAY_JWT_SECRET"`
	MetricsPort string `env:"RELAY_METRICS_PORT" envDefault:"9090"`

	Postgres PostgresConfig
}

// HostConfig - настройки агента хоста.
type HostConfig struct {
	RelayURL    string `env:"RELAY_URL" envDefault:"ws://localhost:7099/ws"`
	AuthURL     string `env:"AUTH_URL" envDefault:"http://localhost:7099/api/auth"`
	RegisterURL string `env:"REGISTER_URL" envDefault:"http://localhost:7099/api/hosts"`
	AccessPIN   string `env:"ACCESS_PIN"`
	Alias       string `env:"HOST_ALIAS"`

	// Частота кадров и потолок по длинной стороне кадра.
	FrameRate int `env:"FRAME_RATE" envDefault:"25"`
	MaxWidth  int `env:"MAX_WIDTH" envDefault:"1920"`
}

// ClientConfig - настройки клиента.
type ClientConfig struct {
	RelayURL  string `env:"RELAY_URL" envDefault:"ws://localhost:7099/ws"`
	AuthURL   string `env:"AUTH_URL" envDefault:"http://localhost:7099/api/auth"`
	AccessPIN string `env:"ACCESS_PIN"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"farview"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// FrameInterval возвращает целевой интервал между кадрами.
func (h *HostConfig) FrameInterval() time.Duration {
	rate := h.FrameRate
	if rate <= 0 {
		rate = 25
	}
	return time.Second / time.Duration(rate)
}

// ICEServers собирает список ICE серверов для transport engine.
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{
		{URLs: []string{c.StunURL}},
	}

	if c.TurnHost != "" {
		servers = append(servers,
			webrtc.ICEServer{
				URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", c.TurnHost)},
				Username:   c.TurnUsername,
				Credential: c.TurnPassword,
			},
			webrtc.ICEServer{
				URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", c.TurnHost)},
				Username:   c.TurnUsername,
				Credential: c.TurnPassword,
			},
		)
	}

	return servers
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &c, nil
}
