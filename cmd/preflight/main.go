// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hamed0406/uptimeworker/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}

	if cfg.Addr != "" {
		if len(cfg.AdminAPIKeys) == 0 {
			warn("ADMIN_API_KEYS is empty; POST /api/sweep is open to anyone who can reach the API.")
		}
		if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
			warn("no API keys configured; read routes are unauthenticated.")
		}
		ok("API_ADDR=" + cfg.Addr)
	} else {
		ok("status API disabled")
	}

	if cfg.DatabaseURL == "" {
		ok("store: JSON files under " + cfg.DataDir)
	} else {
		ok("store: Postgres (DATABASE_URL present)")
	}

	if cfg.SweepInterval == 0 {
		warn("SWEEP_INTERVAL=0; checks will never run on their own.")
	} else {
		ok("SWEEP_INTERVAL=" + cfg.SweepInterval.String())
	}
	ok("check logs: " + cfg.CheckLogDir + " (rotated every " + cfg.RotateInterval.String() + ")")

	twilio := cfg.TwilioAccountSID != "" || cfg.TwilioAuthToken != "" || cfg.TwilioFromPhone != ""
	if twilio && (cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromPhone == "") {
		fail("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE must be set together.")
	}
	if !twilio && cfg.SlackWebhook == "" {
		warn("no alert sink configured; alerts will only be logged.")
	}

	ok("preflight passed")
}
