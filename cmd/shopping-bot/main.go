package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chalet-planner/internal/app"
	"chalet-planner/internal/clipper"
	"chalet-planner/internal/config"
	"chalet-planner/internal/database"
	"chalet-planner/internal/httpapi"
	"chalet-planner/internal/llm"
	"chalet-planner/internal/shopping"
	"chalet-planner/internal/store"
	"chalet-planner/internal/telegram"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	geminiClient, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var itemStore store.Store
	if cfg.TripFeedURL != "" {
		feed := store.NewFeed(cfg.TripFeedURL, cfg.TripID)
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := feed.Connect(connectCtx); err != nil {
			cancel()
			log.Fatalf("Failed to connect to trip feed: %v", err)
		}
		cancel()
		defer feed.Close()
		itemStore = feed
		log.Printf("Using live trip feed at %s", cfg.TripFeedURL)
	} else {
		itemStore = store.NewSQLiteStore(db.SQL)
		log.Printf("Using local store at %s", cfg.DatabasePath)
	}

	var grouper llm.Grouper = geminiClient
	if cfg.GroupingServiceURL != "" {
		grouper = llm.NewRemoteGrouper(cfg.GroupingServiceURL, cfg.GroupingServiceKey)
		log.Printf("Using remote grouping service at %s", cfg.GroupingServiceURL)
	}

	cache := shopping.NewSQLiteCache(db.SQL, cfg.CacheSlot)
	engine := shopping.NewEngine(itemStore, grouper, cache)
	recipeClipper := clipper.NewClipper(itemStore, geminiClient)

	application := app.NewApp(itemStore, engine, geminiClient, recipeClipper)

	rootMux := http.NewServeMux()
	rootMux.Handle("/", httpapi.NewRouter(application))

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(cfg, application)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram Bot: %v", err)
		}
		bot.RegisterHandlers(rootMux)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, running HTTP API only")
	}

	srv := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: rootMux,
	}

	go func() {
		log.Printf("Shopping bot server listening on %s", cfg.HTTPListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
