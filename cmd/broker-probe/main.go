// broker-probe connects to the trading venue, runs the session bootstrap
// and prints what flows in. Credentials come from the environment or a
// YAML config; with IQ_SSID set the HTTP login is skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/iqbroker/pkg/config"
	"github.com/betbot/iqbroker/pkg/logger"
	"github.com/betbot/iqbroker/pkg/sdk/auth"
	"github.com/betbot/iqbroker/pkg/sdk/broker"
	"github.com/betbot/iqbroker/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	minimal := flag.Bool("minimal", false, "skip the profile/balance bootstrap")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	ssid := cfg.SSID
	if ssid == "" {
		logger.Info("no session token configured, logging in")
		ssid, err = auth.NewClient().Login(ctx, cfg.Email, cfg.Password)
		if err != nil {
			logger.Errorf("login: %v", err)
			os.Exit(1)
		}
	}

	b := broker.NewWithConfig(ssid, &broker.Config{
		URL:       cfg.WSURL,
		UserAgent: cfg.UserAgent,
	})

	b.OnTimeSync(func(serverTimeMs int64) {
		logger.Debugf("timeSync %s", time.UnixMilli(serverTimeMs).Format(time.RFC3339))
	})
	b.OnBalances(func(balances []broker.Balance) {
		for _, bal := range balances {
			logger.Infof("balance %d: %.2f %s", bal.ID, bal.Amount, bal.Currency)
		}
	})
	b.OnBalanceChanged(func(change *broker.BalanceChange) {
		cur := change.CurrentBalance
		logger.Infof("balance %d changed: %.2f %s", cur.ID, cur.NewAmount, cur.Currency)
	})
	b.OnCommission(func(ev broker.CommissionEvent) {
		logger.Debugf("commission %s active %d: %.1f%%", ev.InstrumentType, ev.ActiveID, ev.Value)
	})
	b.OnPositionChanged(func(raw json.RawMessage) {
		logger.Infof("position changed: %s", raw)
	})
	b.OnMessage(func(env *broker.InboundEnvelope) {
		logger.Debugf("message %s: %s", env.Name, env.Msg)
	})
	b.OnError(func(err error) {
		logger.Warnf("session error: %v", err)
	})

	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = b.Connect(connectCtx, broker.ConnectOptions{Minimal: *minimal})
	cancel()
	if err != nil {
		logger.Errorf("connect: %v", err)
		os.Exit(1)
	}

	if profile := b.Profile(); profile != nil {
		logger.Infof("connected as user %d (%s)", profile.UserID, profile.Email)
	} else {
		logger.Info("connected")
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		b.Disconnect()
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)
}
