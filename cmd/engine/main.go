package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/rawblock/holdings-engine/internal/alerts"
	"github.com/rawblock/holdings-engine/internal/api"
	"github.com/rawblock/holdings-engine/internal/attribution"
	"github.com/rawblock/holdings-engine/internal/db"
	"github.com/rawblock/holdings-engine/internal/runner"
)

func main() {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	log.Println("Starting RawBlock Holdings Engine (Microservice: wallet-attribution-analytics)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting reports. Error: %v", err)
		dbConn = nil
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Alert manager broadcasts over the hub; an optional webhook receives
	// anything at or above ALERT_WEBHOOK_MIN_SEVERITY.
	alertManager := alerts.NewManager(api.BroadcastRiskAlert(wsHub))
	if webhookURL := os.Getenv("ALERT_WEBHOOK_URL"); webhookURL != "" {
		minSeverity := getEnvOrDefault("ALERT_WEBHOOK_MIN_SEVERITY", "high")
		alertManager.RegisterWebhook("primary", webhookURL, minSeverity, nil)
	}

	// In-memory case manager, warm-started from persisted active cases.
	caseManager := attribution.NewCaseManager()
	if dbConn != nil {
		seedCases(dbConn, caseManager)
	}

	// Batch runner persists and broadcasts every completed report.
	workers := envInt("BATCH_WORKERS", 4)
	batchRunner := runner.NewBatchRunner(workers, api.BroadcastReport(wsHub, dbConn, alertManager))

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, wsHub, caseManager, batchRunner, alertManager)

	port := getEnvOrDefault("PORT", "5341")

	// Start the server
	log.Printf("Engine running on :%s (API Node: wallet-attribution-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// seedCases rebuilds the in-memory case index from durable storage so
// restarts do not lose open investigations.
func seedCases(dbConn *db.PostgresStore, caseManager *attribution.CaseManager) {
	seeds, err := dbConn.LoadActiveCaseSeeds(context.Background())
	if err != nil {
		log.Printf("Warning: failed to load case seeds: %v", err)
		return
	}

	byCase := make(map[string][]db.CaseSeed)
	for _, seed := range seeds {
		byCase[seed.CaseID] = append(byCase[seed.CaseID], seed)
	}
	for caseID, tagged := range byCase {
		c := caseManager.CreateCase(caseID, tagged[0].Name, "", nil)
		for _, seed := range tagged {
			caseManager.TagAddress(c.ID, seed.Address, seed.Label, seed.Role, "", "")
		}
	}
	if len(byCase) > 0 {
		log.Printf("Restored %d active case(s) from storage", len(byCase))
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envInt parses an integer env var, falling back on missing or bad values.
func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, val, fallback)
		return fallback
	}
	return n
}
