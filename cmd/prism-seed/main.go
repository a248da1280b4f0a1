// prism-seed provisions a database with deterministic demo data so the
// analytics pipeline has a realistic catalog, customer roster, and two
// years of sales history to work against. It replaces whatever the
// target tables currently hold.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"

	_ "github.com/lib/pq"

	"github.com/prism-lab/project-prism/internal/core/config"
	"github.com/prism-lab/project-prism/internal/core/logging"
	"github.com/prism-lab/project-prism/internal/migrations"
	"github.com/prism-lab/project-prism/internal/seed"
)

func main() {
	configPath := flag.String("config", "prism.yaml", "Path to configuration file")
	seedValue := flag.Int64("seed", 1, "Random seed for the generator")
	products := flag.Int("products", seed.DefaultProducts, "Number of products to generate")
	customers := flag.Int("customers", seed.DefaultCustomers, "Number of customers to generate")
	sales := flag.Int("sales", seed.DefaultSales, "Number of sales to generate")
	days := flag.Int("days", seed.DefaultDays, "Length of the sales window in days")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	slog.SetDefault(logging.New(cfg.Logging.Level, cfg.Logging.JSON))

	// The seeder writes through SQL directly; only postgres is supported.
	if cfg.Store.Driver != "postgres" {
		slog.Error("Seeding requires the postgres store driver", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	// 3. Connect and Provision Schema
	db, err := sql.Open("postgres", cfg.Store.DSN)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		slog.Error("Failed to reach database", "error", err)
		os.Exit(1)
	}

	if err := migrations.RunMigrations(db, true); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 4. Generate and Apply
	ds := seed.Generate(seed.Config{
		Products:  *products,
		Customers: *customers,
		Sales:     *sales,
		Days:      *days,
		Seed:      *seedValue,
	})

	if err := seed.Apply(ctx, db, ds); err != nil {
		slog.Error("Failed to apply demo dataset", "error", err)
		os.Exit(1)
	}

	slog.Info("Demo data ready",
		"products", len(ds.Products),
		"customers", len(ds.Customers),
		"sales", len(ds.Sales),
		"seed", *seedValue,
	)
}
