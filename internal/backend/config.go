package backend

import (
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/config"
)

// FromAppConfig maps the environment config and preferences onto a backend
// config. The backend name is matched case-insensitively.
func FromAppConfig(appConfig *config.Config, prefs config.Preferences) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(strings.ToLower(strings.TrimSpace(appConfig.DataBackend)))
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("unknown data backend %q: must be one of %s",
			appConfig.DataBackend, strings.Join(GetBackendTypeStrings(), ", "))
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		UserID:       appConfig.UserID,
		Preferences:  prefs,
	}, nil
}

// Validate checks what CreateApp needs to open the store and, when
// messaging is enabled, the publisher.
func (c Config) Validate() error {
	var problems []string
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "sqlite backend needs a database path")
		}
	case MemoryBackend:
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Type))
	}

	if c.AMQPURL != "" {
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			problems = append(problems, "AMQP exchange and queue are required when AMQP URL is set")
		}
		if strings.TrimSpace(c.UserID) == "" {
			problems = append(problems, "user id is required to publish sync messages")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid backend config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
