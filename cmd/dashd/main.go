package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"integrate-dash/config"
	"integrate-dash/internal/gateway"
	"integrate-dash/internal/holdings"
	"integrate-dash/internal/logger"
	"integrate-dash/internal/marketdata"
	"integrate-dash/internal/master"
	"integrate-dash/internal/metrics"
	"integrate-dash/internal/orders"
	"integrate-dash/pkg/integrate"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[dashd] starting...")

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[dashd] loaded .env")
	}

	cfg := config.Load()
	slogger := logger.Init("dashd", logger.ParseLevel(cfg.LogLevel))

	// ---- Broker login ----
	auth := integrate.NewAuthenticator(integrate.Config{
		APIToken:  cfg.APIToken,
		APISecret: cfg.APISecret,
		AuthBase:  cfg.AuthBase,
		APIBase:   cfg.APIBase,
		DataBase:  cfg.DataBase,
		FilesBase: cfg.FilesBase,
	}, cfg.TOTPSecret)

	loginCtx, loginCancel := context.WithTimeout(context.Background(), 60*time.Second)
	client, sess, err := auth.Login(loginCtx, os.Getenv("INTEGRATE_OTP"))
	if errors.Is(err, integrate.ErrOTPRequired) {
		otp, promptErr := promptOTP()
		if promptErr != nil {
			log.Fatalf("[dashd] otp prompt failed: %v", promptErr)
		}
		client, sess, err = auth.Login(loginCtx, otp)
	}
	loginCancel()
	if err != nil {
		log.Fatalf("[dashd] login failed: %v", err)
	}
	log.Printf("[dashd] session established for account %s", sess.ActID)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSessionOK(true)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Instrument master (optional) ----
	var store *master.Store
	if cfg.MasterDB != "" {
		os.MkdirAll(filepath.Dir(cfg.MasterDB), 0o755)
		store, err = master.Open(cfg.MasterDB)
		if err != nil {
			log.Printf("[dashd] WARNING: master db open failed: %v (continuing without)", err)
		} else {
			defer store.Close()
			health.SetMasterOK(true)
		}
	}

	// ---- Redis snapshot mirroring (optional) ----
	var pub *gateway.Publisher
	if cfg.RedisAddr != "" {
		pub, err = gateway.NewPublisher(ctx, cfg.RedisAddr)
		if err != nil {
			log.Printf("[dashd] WARNING: redis init failed: %v (continuing without)", err)
			health.SetRedisConnected(false)
		} else {
			defer pub.Close()
			health.SetRedisConnected(true)
		}
	}

	// ---- Periodic liveness checks ----
	switch {
	case pub != nil && store != nil:
		health.StartLivenessChecker(ctx, pub.Client(), store.DB(), 10*time.Second)
	case pub != nil:
		health.StartLivenessChecker(ctx, pub.Client(), nil, 10*time.Second)
	case store != nil:
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Valuation pipeline ----
	valuer := &holdings.Valuer{
		Source:    client,
		Quotes:    marketdata.NewQuoteService(client, slogger),
		History:   marketdata.NewHistoricalService(client, 0, slogger),
		Exchange:  cfg.Exchange,
		Timeframe: cfg.Timeframe,
		Workers:   cfg.Workers,
		Log:       slogger,
	}

	// ---- Dashboard gateway ----
	hub := gateway.NewHub(prom)
	orderSvc := orders.NewService(client, slogger)
	gwSrv := gateway.NewServer(cfg.GatewayAddr, hub, store, orderSvc)
	gwSrv.Start()

	refresher := &gateway.Refresher{
		Valuer:         valuer,
		Hub:            hub,
		Publisher:      pub,
		Metrics:        prom,
		Health:         health,
		ActID:          sess.ActID,
		TotalCapital:   cfg.TotalCapital,
		OpenInterval:   cfg.RefreshOpen,
		ClosedInterval: cfg.RefreshClosed,
	}
	go refresher.Run(ctx)

	log.Printf("[dashd] serving dashboard on %s, metrics on %s", cfg.GatewayAddr, cfg.MetricsAddr)

	<-sigCh
	log.Println("[dashd] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[dashd] bye")
}

// promptOTP reads a one-time password from stdin when no TOTP secret is
// configured.
func promptOTP() (string, error) {
	fmt.Fprint(os.Stderr, "Enter OTP: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	otp := strings.TrimSpace(line)
	if otp == "" {
		return "", errors.New("empty otp")
	}
	return otp, nil
}
