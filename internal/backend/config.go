package backend

import (
	"fmt"

	"ledger/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storeType := StoreType(appConfig.StoreBackend)
	if !storeType.IsValid() {
		return Config{}, fmt.Errorf("invalid store backend in config: %s", appConfig.StoreBackend)
	}

	cfg := Config{
		Type:         storeType,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	if storeType == SQLiteStore {
		cfg.SQLiteDSN = appConfig.SQLiteDSN()
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Type)
	}
	if c.Type == SQLiteStore && c.SQLiteDSN == "" {
		return fmt.Errorf("SQLite DSN is required for sqlite store")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP_URL is set")
	}
	return nil
}
