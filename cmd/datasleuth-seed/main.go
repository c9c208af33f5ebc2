// datasleuth-seed generates the synthetic e-commerce demo dataset as parquet
// files and/or a SQLite database, optionally uploading the result to an
// S3-compatible object store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/datasleuth/datasleuth/internal/config"
	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/observability"
	"github.com/datasleuth/datasleuth/internal/seed"
	"github.com/datasleuth/datasleuth/internal/storage"
)

func main() {
	defaults := seed.DefaultConfig()

	output := pflag.StringP("output", "o", "./data", "output directory")
	rows := pflag.IntP("rows", "n", 10000, "base row count for the orders table")
	format := pflag.StringP("format", "f", "both", "output format: parquet, sqlite, or both")

	nullEmailRate := pflag.Float64("null-email-rate", defaults.NullEmailRate, "fraction of customers with NULL emails")
	negativePriceRate := pflag.Float64("negative-price-rate", defaults.NegativePriceRate, "fraction of products with negative prices")
	duplicateRate := pflag.Float64("duplicate-rate", defaults.DuplicateOrderRate, "fraction of duplicate orders")
	futureTSRate := pflag.Float64("future-ts-rate", defaults.FutureTimestampRate, "fraction of events with future timestamps")
	anomalyMonth := pflag.Int("anomaly-month", defaults.AnomalyMonth, "month with anomalously low quantities (0 disables)")

	customerRatio := pflag.Float64("customer-ratio", defaults.CustomerRatio, "customer count as fraction of orders")
	productRatio := pflag.Float64("product-ratio", defaults.ProductRatio, "product count as fraction of orders")
	eventMultiplier := pflag.Int("event-multiplier", defaults.EventMultiplier, "events per order row")
	randSeed := pflag.Int64("seed", defaults.Seed, "random seed")

	noDefects := pflag.Bool("no-defects", false, "disable all intentional quality issues")

	upload := pflag.Bool("upload", false, "upload generated files to the object store")
	uploadPrefix := pflag.String("upload-prefix", "", "object key prefix for uploaded files")

	pflag.Parse()

	cfg, err := config.LoadFromEnv("datasleuth-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if *format != "parquet" && *format != "sqlite" && *format != "both" {
		fmt.Fprintf(os.Stderr, "invalid format: %s\n", *format)
		os.Exit(1)
	}
	if *anomalyMonth < 0 || *anomalyMonth > 12 {
		fmt.Fprintf(os.Stderr, "invalid anomaly month: %d\n", *anomalyMonth)
		os.Exit(1)
	}

	genCfg := defaults
	genCfg.NullEmailRate = *nullEmailRate
	genCfg.NegativePriceRate = *negativePriceRate
	genCfg.DuplicateOrderRate = *duplicateRate
	genCfg.FutureTimestampRate = *futureTSRate
	genCfg.AnomalyMonth = *anomalyMonth
	genCfg.CustomerRatio = *customerRatio
	genCfg.ProductRatio = *productRatio
	genCfg.EventMultiplier = *eventMultiplier
	genCfg.Seed = *randSeed
	if *noDefects {
		genCfg = genCfg.NoDefects()
	}

	outputDir, err := filepath.Abs(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve output directory: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	logger.Info("generating synthetic e-commerce data",
		slog.Int("orders", *rows),
		slog.String("output", outputDir),
		slog.String("format", *format),
		slog.Bool("defects", !*noDefects),
	)

	dataset := seed.NewGenerator(genCfg).Dataset(*rows)
	writer := seed.NewWriter(outputDir, logger)

	// SQLite output converts the parquet files, so those are always written.
	paths, err := writer.WriteParquet(dataset)
	if err != nil {
		logger.Error("failed to write parquet files", slog.Any("error", err))
		os.Exit(1)
	}

	if *format == "sqlite" || *format == "both" {
		e, err := engine.New(ctx, engine.Config{Logger: logger})
		if err != nil {
			logger.Error("failed to open engine", slog.Any("error", err))
			os.Exit(1)
		}
		dbPath, err := writer.WriteSQLite(ctx, e)
		_ = e.Close()
		if err != nil {
			logger.Error("failed to write sqlite database", slog.Any("error", err))
			os.Exit(1)
		}
		paths = append(paths, dbPath)
	}
	if *format == "sqlite" {
		for _, table := range seed.TableNames {
			_ = os.Remove(filepath.Join(outputDir, table+".parquet"))
		}
		paths = paths[len(paths)-1:]
	}

	if *upload {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:         os.Getenv("DATASLEUTH_S3_ENDPOINT"),
			Region:           os.Getenv("DATASLEUTH_S3_REGION"),
			Bucket:           os.Getenv("DATASLEUTH_S3_BUCKET"),
			AccessKeyID:      os.Getenv("DATASLEUTH_S3_ACCESS_KEY"),
			SecretAccessKey:  os.Getenv("DATASLEUTH_S3_SECRET_KEY"),
			UseSSL:           os.Getenv("DATASLEUTH_S3_USE_SSL") == "true",
			Prefix:           os.Getenv("DATASLEUTH_S3_PREFIX"),
			AutoCreateBucket: true,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		if err := seed.NewWriter(outputDir, logger).Upload(ctx, store, *uploadPrefix, paths); err != nil {
			logger.Error("failed to upload dataset", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.Info("done",
		slog.Int("customers", len(dataset.Customers)),
		slog.Int("products", len(dataset.Products)),
		slog.Int("orders", len(dataset.Orders)),
		slog.Int("events", len(dataset.Events)),
	)
}
