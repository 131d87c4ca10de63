package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/fomovoice/voice-club/internal/api"
	"github.com/fomovoice/voice-club/internal/config"
	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/handraise"
	"github.com/fomovoice/voice-club/internal/server"
	"github.com/fomovoice/voice-club/internal/stats"
	"github.com/fomovoice/voice-club/internal/xp"
)

const defaultSigningKey = "5Y2LrP0aUrFGJ0hA0B6B2uTtW1qOgGiRzC8m2f1uXnQ="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	queueLimit     int
	allowedOrigins stringSliceFlag
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional, flags and real env vars win
	_ = godotenv.Load()

	defaultQueueLimit := 0
	if v := os.Getenv("QUEUE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			defaultQueueLimit = n
		}
	}

	flag.StringVar(&addr, "addr", envOr("SERVER_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.IntVar(&queueLimit, "queue-limit", defaultQueueLimit, "max pending hand raises per session (0 for default)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[voice-club] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, queueLimit)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgClubRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	roomManager := server.NewRoomManager(logger, statsUpdater)

	xpService := xp.NewService(dbConn)
	queueService := handraise.NewService(dbConn, xpService, logger, cfg.QueueLimit)

	srv := api.NewClubApp(mux, logger, roomManager, queueService, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("closing live rooms...")
	roomManager.Shutdown()

	logger.Println("shutdown complete")
}
