package config

import "github.com/micromart/services/pkg/config"

type ServiceConfig struct {
	config.Config
}

func Load() ServiceConfig {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order-service"
	}

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmpty(cfg.UserServiceURL, "USER_SERVICE_URL")
	config.MustNonEmpty(cfg.ProductServiceURL, "PRODUCT_SERVICE_URL")

	return ServiceConfig{Config: cfg}
}
