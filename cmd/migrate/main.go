package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain/model"
	pg "telegram-credit-miniapp/internal/infra/db/postgres"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/usecase"
)

const usage = `usage: migrate [-config path] [-reset] [-grant userID:credits] [up|down|status|version]

Runs goose against the embedded migrations (default "up").
-reset truncates every table afterwards for a clean manual test run.
-grant adds credits to one account, creating it when missing.`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "truncate all tables after migrating")
	grant := flag.String("grant", "", "userID:credits to add after migrating")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, command, logger); err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migrate failed")
	}

	if *reset {
		if _, err := pool.Exec(ctx, `TRUNCATE user_credits, payments, referrals`); err != nil {
			logger.Fatal().Err(err).Msg("reset failed")
		}
		logger.Warn().Msg("all tables truncated")
	}

	if *grant != "" {
		userID, amount, err := parseGrant(*grant)
		if err != nil {
			logger.Fatal().Err(err).Msg("bad -grant")
		}
		ledger := usecase.NewLedgerUseCase(pg.NewLedgerRepo(pool), cfg.Payment.WelcomeCredits, logger)
		balance, err := ledger.Add(ctx, userID, amount, model.CreditReasonManual)
		if err != nil {
			logger.Fatal().Err(err).Msg("grant failed")
		}
		fmt.Printf("user %d now has %d credits\n", userID, balance)
	}
}

func parseGrant(s string) (int64, int, error) {
	user, credits, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected userID:credits, got %q", s)
	}
	userID, err := strconv.ParseInt(user, 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id %q", user)
	}
	amount, err := strconv.Atoi(credits)
	if err != nil || amount <= 0 {
		return 0, 0, fmt.Errorf("invalid credits %q", credits)
	}
	return userID, amount, nil
}
