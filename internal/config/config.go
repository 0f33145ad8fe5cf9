package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Widget WidgetConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Widget: widget, Log: loadLogConfig()}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// WidgetConfig 描述聊天弹窗的行为参数。
type WidgetConfig struct {
	PersonaID   string
	TypingDelay time.Duration
	IdleTimeout time.Duration
	TimeFormat  string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, errors.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

func loadWidgetConfig() (WidgetConfig, error) {
	delay, err := parseDurationEnv("CHAT_TYPING_DELAY", 800*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}
	if delay <= 0 {
		return WidgetConfig{}, errors.Errorf("CHAT_TYPING_DELAY must be positive, got %s", delay)
	}

	// 0 表示不自动回收
	idle, err := parseDurationEnv("CHAT_IDLE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return WidgetConfig{}, err
	}
	if idle < 0 {
		idle = 0
	}

	return WidgetConfig{
		PersonaID:   getEnvOrDefault("CHAT_PERSONA", persona.DefaultID),
		TypingDelay: delay,
		IdleTimeout: idle,
		TimeFormat:  getEnvOrDefault("CHAT_TIME_FORMAT", "15:04"),
	}, nil
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	return val, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
