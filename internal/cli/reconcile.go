package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/entities"
	"github.com/mrlokans/coursemarket/internal/reconcile"
)

// ReconcileCommand drains the compensation log outside the server, for
// deployments that run without the task queue.
type ReconcileCommand struct {
	MaxBatches int
	Verbose    bool

	cfg *config.Config
}

func NewReconcileCommand(cfg *config.Config) *ReconcileCommand {
	return &ReconcileCommand{cfg: cfg}
}

func (cmd *ReconcileCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)

	fs.IntVar(&cmd.MaxBatches, "batches", 10, "Maximum number of batches to process")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print per-batch results")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s reconcile [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Resolve pending compensation entries left by partially applied writes.\n")
		fmt.Fprintf(os.Stderr, "Batch size and attempt limit come from RECONCILE_BATCH_SIZE and RECONCILE_MAX_ATTEMPTS.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.MaxBatches <= 0 {
		return fmt.Errorf("-batches must be positive")
	}
	return nil
}

func (cmd *ReconcileCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cmd.cfg.Database, logger.Warn)
	if err != nil {
		return err
	}
	defer db.Close()

	comps := compensations.NewRepository(db.DB)
	client := store.New(db.DB, store.WithTransactions(cmd.cfg.Database.Transactional))
	service := reconcile.NewService(client, comps, nil, cmd.cfg.Maintenance)

	var total reconcile.Result
	for batch := 1; batch <= cmd.MaxBatches; batch++ {
		result, err := service.Run(ctx)
		total.Resolved += result.Resolved
		total.Retried += result.Retried
		total.Failed += result.Failed
		if err != nil {
			return fmt.Errorf("reconcile batch %d: %w", batch, err)
		}
		if cmd.Verbose {
			fmt.Printf("batch %d: resolved %d, retrying %d, gave up on %d\n", batch, result.Resolved, result.Retried, result.Failed)
		}
		// Entries that are retried stay pending, so only a batch with
		// nothing resolved means the log is drained for now.
		if result.Resolved == 0 {
			break
		}
	}

	pending, err := comps.CountByStatus(ctx, entities.CompensationPending)
	if err != nil {
		return fmt.Errorf("count pending compensations: %w", err)
	}

	fmt.Println("Reconcile")
	fmt.Println("=========")
	fmt.Printf("Resolved:  %d\n", total.Resolved)
	fmt.Printf("Retrying:  %d\n", total.Retried)
	fmt.Printf("Gave up:   %d\n", total.Failed)
	fmt.Printf("Pending:   %d\n", pending)
	return nil
}
