package cli

import (
	"fmt"
	"os"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/service"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

// bootstrap loads config, opens the database and wires the full
// composition root, the sequence `serve` and `worker` both need
// before doing anything else.
func bootstrap() (*config.Config, *service.Services) {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	services, err := service.New(cfg, database.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build services: %v\n", err)
		os.Exit(1)
	}
	return cfg, services
}
