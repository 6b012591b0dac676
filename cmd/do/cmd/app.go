package cmd

import (
	"fmt"

	"github.com/templui/docvault/internal/app"
	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/logger"
)

// withApp loads the environment config, opens the app, and closes it after fn.
func withApp(fn func(a *app.App) error) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	defer logger.Flush()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Println("close failed:", err)
		}
	}()
	return fn(a)
}
