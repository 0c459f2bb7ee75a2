package main

import (
	"flag"
	"fmt"
	"os"

	"starpath/internal/config"
	"starpath/internal/database"
	"starpath/internal/logging"
	"starpath/internal/repository"
	"starpath/internal/service"
)

func main() {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	repairCmd := flag.NewFlagSet("repair", flag.ExitOnError)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()

	if err := logging.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		panic(err)
	}
	defer logging.Logger.Sync()

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logging.Sugar.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logging.Sugar.Fatalw("failed to run migrations", "error", err)
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	reconcileService := service.NewReconcileService(ledgerRepo, statsRepo)

	switch os.Args[1] {
	case "check":
		checkCmd.Parse(os.Args[2:])
		handleCheck(reconcileService)

	case "repair":
		repairCmd.Parse(os.Args[2:])
		handleRepair(reconcileService)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleCheck(svc *service.ReconcileService) {
	drifts, err := svc.Check()
	if err != nil {
		logging.Sugar.Fatalw("reconcile check failed", "error", err)
	}

	if len(drifts) == 0 {
		fmt.Println("All star totals match the ledger")
		return
	}

	fmt.Printf("%d child(ren) with drifted star totals:\n", len(drifts))
	for _, d := range drifts {
		fmt.Printf("  child %d: ledger=%d cached=%d\n", d.ChildID, d.LedgerTotal, d.StatsTotal)
	}
	os.Exit(1)
}

func handleRepair(svc *service.ReconcileService) {
	drifts, err := svc.Repair()
	if err != nil {
		logging.Sugar.Fatalw("reconcile repair failed", "error", err)
	}

	if len(drifts) == 0 {
		fmt.Println("Nothing to repair")
		return
	}

	fmt.Printf("Repaired %d child(ren):\n", len(drifts))
	for _, d := range drifts {
		fmt.Printf("  child %d: %d -> %d\n", d.ChildID, d.StatsTotal, d.LedgerTotal)
	}
}

func printUsage() {
	fmt.Println("Usage: reconcile <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  check   Report children whose cached star totals disagree with the ledger")
	fmt.Println("  repair  Reset drifted star caches from the ledger")
}
