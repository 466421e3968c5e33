package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orms/orms/internal/config"
	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/importer"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/ids"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orms-server",
		Short: "Outpatient records management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a directory of CSV exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := importer.New(a.svc.importTargets(), a.logger).Run(ctx, dir)
			if sum != nil {
				printImportSummary(os.Stdout, sum)
			}
			return err
		},
	}
	cmd.Flags().String("dir", "./data", "Directory holding <table>.csv files")
	return cmd
}

func printImportSummary(w io.Writer, sum *importer.Summary) {
	fmt.Fprintf(w, "%-18s %9s %7s\n", "TABLE", "IMPORTED", "FAILED")
	for _, t := range sum.Tables {
		if t.Skipped {
			fmt.Fprintf(w, "%-18s %9s %7s\n", t.Table, "-", "-")
			continue
		}
		fmt.Fprintf(w, "%-18s %9d %7d\n", t.Table, t.Imported, t.Failed)
	}
	fmt.Fprintf(w, "%-18s %9d %7d\n", "total", sum.Imported(), sum.Failed())
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List bills whose total does not match their services and tax",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.svc.billing.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			printReconcile(os.Stdout, reports)
			return nil
		},
	}
}

func printReconcile(w io.Writer, reports []*billing.ReconcileReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "All bills reconcile.")
		return
	}
	fmt.Fprintf(w, "%-20s %12s %10s %12s %12s %8s\n", "INVOICE", "TOTAL", "TAX", "SERVICES", "DIFFERENCE", "LINES")
	for _, r := range reports {
		fmt.Fprintf(w, "%-20s %12.2f %10.2f %12.2f %12.2f %8d\n",
			ids.InvoiceNumber(r.BillID), r.AmountTotal, r.Tax, r.ServicesTotal, r.Difference, r.ServiceCount)
	}
	fmt.Fprintf(w, "%d bill(s) out of balance.\n", len(reports))
}

func runServer() error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.reference.VerifyLookupTables(ctx); err != nil {
		a.logger.Error().Err(err).Msg("lookup tables do not match the built-in enums")
		return err
	}

	e := newRouter(a.cfg, a.logger, a.pool, a.svc)

	addr := ":" + a.cfg.Port
	go func() {
		a.logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		StatementTimeout: cfg.DBStatementTimeout,
	}
}
