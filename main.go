package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/broker-statement-parser/internal/api"
	"github.com/insightdelivered/broker-statement-parser/internal/config"
	"github.com/insightdelivered/broker-statement-parser/internal/logger"
	"github.com/insightdelivered/broker-statement-parser/internal/models"
	"github.com/insightdelivered/broker-statement-parser/internal/parser"
	"github.com/insightdelivered/broker-statement-parser/internal/storage"
	"github.com/insightdelivered/broker-statement-parser/internal/writer"
)

const version = "2.0.0"

func main() {
	cfg, cfgErr := config.Load()

	brokerFlag := flag.String("broker", "", "Broker: vtb (auto-detected if omitted)")
	outputFlag := flag.String("output", "", "Output file path; stdout when omitted for a single input, <input>.<format> for several")
	formatFlag := flag.String("format", "json", "Output format: json or csv")
	headerFlag := flag.Bool("header", true, "Include account metadata rows in CSV output")
	dbFlag := flag.String("db", cfg.DatabasePath, "SQLite file to archive parsed statements into (DATABASE_PATH)")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	addrFlag := flag.String("addr", cfg.ListenAddr, "HTTP listen address (LISTEN_ADDR)")
	levelFlag := flag.String("loglevel", cfg.LogLevel, "Log level: debug, info, warn, error, disabled (LOGLEVEL)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Broker Statement Parser

Extracts cash-flow operations and securities trades from broker
back-office reports (.xls/.xlsx) into JSON or CSV.

Usage:
  broker-statement-parser [flags] <report.xlsx> [report2.xls ...]
  broker-statement-parser -serve [-addr :8080] [-db ops.db]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Parse one report to stdout
  broker-statement-parser report.xlsx

  # CSV next to each input
  broker-statement-parser -format=csv jan.xls feb.xls

  # Archive into SQLite as well
  broker-statement-parser -db=ops.db report.xlsx

Supported Brokers:
  vtb  - VTB back-office broker report
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("broker-statement-parser v%s\n", version)
		os.Exit(0)
	}

	log := logger.New(cfg.Production())
	log, err := logger.SetLevel(log, *levelFlag)
	if err != nil {
		fatalf("%v\n", err)
	}
	if cfgErr != nil {
		fatalf("Configuration error: %v\n", cfgErr)
	}
	if cfg.EnvFileLoaded {
		log.Debug().Msg("loaded environment variables from .env file")
	}

	var store *storage.StatementRepository
	if *dbFlag != "" {
		db, err := storage.New(*dbFlag)
		if err != nil {
			fatalf("Archive unavailable: %v\n", err)
		}
		defer db.Close()
		store = storage.NewStatementRepository(db)
		log.Info().Str("path", *dbFlag).Msg("statement archive enabled")
	}

	if *serveFlag {
		if err := serve(log, store, *addrFlag, cfg.MaxUploadBytes()); err != nil {
			log.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	var broker models.BrokerType
	if *brokerFlag != "" {
		if broker, err = parser.ParseBroker(*brokerFlag); err != nil {
			fatalf("%v. Supported: vtb\n", err)
		}
	}

	out, err := writer.ForFormat(*formatFlag, *headerFlag)
	if err != nil {
		fatalf("%v\n", err)
	}

	inputs := flag.Args()
	for _, inputPath := range inputs {
		outPath := *outputFlag
		if outPath == "" && len(inputs) > 1 {
			outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + strings.ToLower(*formatFlag)
		}
		if err := processFile(log, store, inputPath, broker, out, outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func processFile(log zerolog.Logger, store *storage.StatementRepository, inputPath string, broker models.BrokerType, out writer.Writer, outPath string) error {
	log = log.With().Str("file", inputPath).Logger()

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	result, err := parser.ParseFullStatement(inputPath, broker, log)
	if err != nil {
		return err
	}

	if len(result.Operations) == 0 {
		log.Warn().
			Bool("cash_flow_section", result.Meta.FinStats.SectionFound).
			Bool("trades_section", result.Meta.TradeStats.SectionFound).
			Msg("no operations found; the report layout may not match expected patterns")
	}

	if store != nil {
		id, err := store.SaveStatement(context.Background(), result, filepath.Base(inputPath))
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		log.Info().Str("statement_id", id.String()).Msg("statement archived")
	}

	if outPath == "" {
		return out.Write(os.Stdout, result)
	}
	if err := writer.WriteToFile(out, outPath, result); err != nil {
		return err
	}
	log.Info().Str("output", outPath).Int("operations", len(result.Operations)).Msg("output written")
	return nil
}

func serve(log zerolog.Logger, store *storage.StatementRepository, addr string, bodyLimit int) error {
	app := api.NewApp(&api.Handler{Log: log, Store: store}, bodyLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		app.Shutdown()
	}()

	log.Info().Str("addr", addr).Msg("listening")
	return app.Listen(addr)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
