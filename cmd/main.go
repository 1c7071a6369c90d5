package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/api"
	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/config"
	"github.com/KAsare1/pesb-server/db"
	"github.com/KAsare1/pesb-server/logging"
	"github.com/KAsare1/pesb-server/service/auth"
	"github.com/KAsare1/pesb-server/service/user"
)

const usage = `usage: pesb-server [command]

commands:
  serve               start the HTTP server (default)
  migrate             create or update tables and the upload directory
  clear-db            drop every table
  dump-db             print every table as JSON
  grant-admin <email> give a registered user the admin role`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = withDatabase(cfg, func(DB *gorm.DB) error { return startServer(cfg, DB) })
	case "migrate":
		err = withDatabase(cfg, func(DB *gorm.DB) error { return runMigrations(cfg, DB) })
	case "clear-db":
		err = withDatabase(cfg, runDatabaseClear)
	case "dump-db":
		err = withDatabase(cfg, func(DB *gorm.DB) error { return db.Dump(DB, os.Stdout) })
	case "grant-admin":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = withDatabase(cfg, func(DB *gorm.DB) error { return grantAdmin(cfg, DB, os.Args[2]) })
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logging.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func withDatabase(cfg *config.Config, fn func(*gorm.DB) error) error {
	DB, err := db.NewStorage(cfg.Database)
	if err != nil {
		return fmt.Errorf("database initialization error: %w", err)
	}
	defer func() {
		if err := db.Close(DB); err != nil {
			logging.Warn().Err(err).Msg("failed to close database")
			return
		}
		logging.Info().Msg("database connection closed")
	}()
	logging.Info().Str("driver", cfg.Database.Driver).Msg("connected to the database")

	return fn(DB)
}

func runMigrations(cfg *config.Config, DB *gorm.DB) error {
	logging.Info().Msg("starting database migrations")
	if err := db.Migrate(DB); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", cfg.Storage.UploadDir, err)
	}
	logging.Info().Str("dir", cfg.Storage.UploadDir).Msg("upload directory created/verified")

	logging.Info().Msg("migrations completed successfully")
	return nil
}

func startServer(cfg *config.Config, DB *gorm.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewApiServer(cfg, DB)
	return server.Run(ctx)
}

func runDatabaseClear(DB *gorm.DB) error {
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(answer) != "yes" {
		logging.Info().Msg("database clearing cancelled")
		return nil
	}

	if err := db.Clear(DB); err != nil {
		return err
	}
	logging.Info().Msg("database cleared successfully")
	return nil
}

// grantAdmin bootstraps the first admin. Later role changes go through
// the admin API.
func grantAdmin(cfg *config.Config, DB *gorm.DB, email string) error {
	issuer := auth.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
	store, err := user.NewStore(DB, issuer, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	ctx := context.Background()
	u, err := store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err := store.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return err
	}
	logging.Info().Uint("user_id", u.ID).Str("email", u.Email).Msg("admin role granted")
	return nil
}
