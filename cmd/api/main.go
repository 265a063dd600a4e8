package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nickbanetti/vbs/internal/auth"
	"github.com/nickbanetti/vbs/internal/db"
	"github.com/nickbanetti/vbs/internal/router"
	"github.com/nickbanetti/vbs/internal/scan"
	"github.com/nickbanetti/vbs/internal/storage"
	"github.com/nickbanetti/vbs/internal/vision"
)

func main() {

	// ───────────────────────── ENV ─────────────────────────
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	required := []string{
		"JWT_SECRET",
		"DATABASE_URL",
		"GEMINI_API_KEY",
		"R2_ACCESS_KEY",
		"R2_SECRET_KEY",
		"R2_BUCKET_NAME",
		"R2_ENDPOINT",
		"R2_PUBLIC_BASE_URL",
	}

	for _, k := range required {
		if os.Getenv(k) == "" {
			log.Fatalf("❌ Missing env var: %s", k)
		}
	}

	// ───────────────────────── DB ─────────────────────────
	pgDB := db.ConnectPostgres()
	defer pgDB.Close()

	// ───────────────────────── STORAGE ─────────────────────────
	r2Client, err := storage.NewR2Client(context.Background())
	if err != nil {
		log.Fatal("❌ R2 init failed:", err)
	}

	// ───────────────────────── AUTH ─────────────────────────
	userRepo := auth.NewPostgresUserRepository(pgDB)
	authService := auth.NewService(userRepo)
	authHandler := auth.NewHandler(authService)

	// ───────────────────────── SCANS ─────────────────────────
	scanRepo := scan.NewPostgresRepository(pgDB)

	newClient := func(apiKey, model string) vision.Client {
		return vision.NewGeminiClient(apiKey, model)
	}

	scanService := scan.NewService(
		scanRepo,
		r2Client,
		newClient,
		os.Getenv("GEMINI_API_KEY"),
	)
	scanHandler := scan.NewHandler(scanService)

	go scanService.RunAnalysisWorker(context.Background(), 5*time.Second)

	// ───────────────────────── START ─────────────────────────
	r := router.New(authHandler, scanHandler)

	log.Println("🚀 API running at http://localhost:8000")
	if err := r.Run(":8000"); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
