package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laptop_tracker/app"
	"laptop_tracker/config"
	"laptop_tracker/db"
	"laptop_tracker/lifecycle"
	"laptop_tracker/routes"
	"laptop_tracker/seed"

	"github.com/spf13/cobra"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func main() {
	config.LoadEnv()

	root := &cobra.Command{
		Use:          "laptop-tracker",
		Short:        "Track which laptop is with whom",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runMigrate() },
	}

	var (
		seedFile string
		dryRun   bool
	)
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load laptops, persons and biometric readers from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), seedFile, dryRun)
		},
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "inventory.yaml", "Inventory file")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file against an empty in-memory store only")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that laptop status matches the assignment ledger (exit 2 on drift)",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runVerify(cmd.Context()) },
	}

	root.AddCommand(serveCmd, migrateCmd, seedCmd, verifyCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := app.BootstrapFirstAdmin(ctx, cfg, application.Repo); err != nil {
		log.Printf("[BOOTSTRAP] %v", err)
	}
	routes.RegisterRoutes(application.Router, application)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openLifecycle() (*lifecycle.Coordinator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := db.Migrate(conn); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	lc := lifecycle.New(
		db.NewLedgerStore(conn),
		lifecycle.WithPolicy(lifecycle.Policy{ClearBiometricOnCheckIn: cfg.CheckInClearsBiometric}),
	)
	return lc, closeDB, nil
}

func runMigrate() error {
	_, closeDB, err := openLifecycle()
	if err != nil {
		return err
	}
	closeDB()
	log.Printf("schema is up to date")
	return nil
}

func runSeed(ctx context.Context, path string, dryRun bool) error {
	inv, err := seed.LoadFile(path)
	if err != nil {
		return &exitErr{code: 3, msg: err.Error()}
	}

	var rep seed.Report
	if dryRun {
		rep, err = seed.DryRun(ctx, inv)
	} else {
		lc, closeDB, oerr := openLifecycle()
		if oerr != nil {
			return oerr
		}
		defer closeDB()
		rep, err = seed.Apply(ctx, lc, inv)
	}
	if err != nil {
		return &exitErr{code: 2, msg: fmt.Sprintf("seed %s: %v (%s)", path, err, rep)}
	}
	log.Printf("seed %s: %s", path, rep)
	return nil
}

func runVerify(ctx context.Context) error {
	lc, closeDB, err := openLifecycle()
	if err != nil {
		return err
	}
	defer closeDB()

	issues, err := lc.VerifyConsistency(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"consistent": len(issues) == 0, "issues": issues})
	if len(issues) > 0 {
		return &exitErr{code: 2, msg: fmt.Sprintf("%d inconsistencies found", len(issues))}
	}
	return nil
}
