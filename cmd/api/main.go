// Command api runs the wallet ledger HTTP service.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Haleralex/walletledger/internal/config"
	"github.com/Haleralex/walletledger/internal/container"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Local development reads .env; deployed environments set real
	// variables and ship no such file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg, err := config.Load("configs", "config")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app := container.New(cfg)

	if err := app.Initialize(context.Background()); err != nil {
		// Release whatever did come up before the failure.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			app.Logger().Error("shutdown finished with errors", slog.String("error", err.Error()))
		}
	}()

	return app.Run()
}
