package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gustakei/lave/config"
	"github.com/gustakei/lave/scraper/portal"
	"github.com/gustakei/lave/utils"
)

// savesession opens a visible browser against the portal, logs in and
// writes the session state file the backend reuses on every scrape.
func main() {
	url := flag.String("url", "", "portal URL (defaults to PORTAL_URL)")
	username := flag.String("username", "", "portal username (defaults to LOGIN_USERNAME)")
	password := flag.String("password", "", "portal password (defaults to LOGIN_PASSWORD)")
	output := flag.String("output", "", "session state path (defaults to STORAGE_STATE_PATH)")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	// Run headful so a human can solve captchas or 2FA prompts.
	cfg.Headless = false
	if *url != "" {
		cfg.PortalURL = *url
	}
	if *output != "" {
		cfg.StorageStatePath = *output
	}
	user := orEnv(*username, cfg.LoginUsername)
	pass := orEnv(*password, cfg.LoginPassword)

	if cfg.PortalURL == "" {
		fmt.Fprintln(os.Stderr, "usage: savesession --url https://portal.example [--username u --password p] [--output state.json]")
		os.Exit(2)
	}

	scraper := portal.New(cfg, logger, portal.NewMetrics())
	if err := scraper.Start(context.Background()); err != nil {
		logger.Error("Failed to start browser: %v", err)
		os.Exit(1)
	}
	defer scraper.Close()

	if err := scraper.CaptureSession(context.Background(), user, pass); err != nil {
		logger.Error("Session capture failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Session state saved to %s", cfg.StorageStatePath)
}

func orEnv(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}
