package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"autojunit/internal/archive"
	"autojunit/internal/console"
	"autojunit/internal/ledger"
	"autojunit/internal/orchestrator"
	"autojunit/internal/staging"
	"autojunit/internal/submission"
	"autojunit/internal/toolchain"
	"autojunit/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		if err := firstRunSetup(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "first-run setup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "grading run failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	runner, err := toolchain.NewRunner(appCfg.Toolchain.toOptions())
	if err != nil {
		return err
	}
	// Fail before the ledger file or staging root is touched.
	if err := runner.VerifySetup(ctx); err != nil {
		return err
	}

	scanner := submission.NewScanner(appCfg.Paths.HomeworkDir, appCfg.Paths.DoneDirName, appCfg.Scan.IgnoreDirs)
	subs, err := scanner.Scan()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Printf("No pending submissions found in %s.\n", appCfg.Paths.HomeworkDir)
		return nil
	}

	book, err := ledger.Open(appCfg.Paths.LedgerPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = book.Close()
	}()

	operator, err := console.New(appCfg.Grading.MaxScore)
	if err != nil {
		return err
	}
	defer func() {
		_ = operator.Close()
	}()

	stager := staging.NewManager(appCfg.Paths.StagingDir, appCfg.Paths.HarnessPath, appCfg.Scan.IgnoreDirs)
	mover := archive.NewMover(filepath.Join(appCfg.Paths.HomeworkDir, appCfg.Paths.DoneDirName))

	orch := orchestrator.New(stager, runner, book, mover, operator, appCfg.Paths.HarnessPath)
	if len(appCfg.Grading.DeclaredTests) > 0 {
		orch.SetDeclaredTests(appCfg.Grading.DeclaredTests)
	}

	summary, err := orch.Run(ctx, subs)
	if err != nil {
		return err
	}
	logger.Info(ctx, "batch finished",
		zap.Int("total", summary.Total),
		zap.Int("graded", summary.Graded),
		zap.Int("resumed", summary.Resumed),
		zap.Int("flagged", summary.Flagged),
		zap.Int("skipped", summary.Skipped),
		zap.String("ledger", book.Path()))
	return nil
}
