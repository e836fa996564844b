package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/audit"
	"github.com/mrlokans/ebookstore/internal/database"
	auditrepo "github.com/mrlokans/ebookstore/internal/database/audit"
	"github.com/mrlokans/ebookstore/internal/database/ledger"
	"github.com/mrlokans/ebookstore/internal/reconcile"
)

const (
	reconcileList   = "list"
	reconcileSettle = "settle"
	reconcileAll    = "settle-all"
)

// ReconcileCommand inspects and settles charges that were paid at the gateway
// but never reached the ledger. Settlement only writes the ledger.
type ReconcileCommand struct {
	Action       string
	ID           uint
	Limit        int
	MaxAttempts  int
	DatabasePath string
	Verbose      bool

	Out io.Writer
}

func NewReconcileCommand() *ReconcileCommand {
	return &ReconcileCommand{Out: os.Stdout}
}

func (cmd *ReconcileCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)

	var id uint64
	fs.Uint64Var(&id, "id", 0, "Reconciliation ID to settle (required for 'settle')")
	fs.IntVar(&cmd.Limit, "limit", 50, "Maximum reconciliations to list or settle")
	fs.IntVar(&cmd.MaxAttempts, "max-attempts", reconcile.DefaultMaxAttempts, "Failed attempts before a reconciliation is marked failed")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the sqlite database (defaults to DATABASE_PATH)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s reconcile <list|settle|settle-all> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Inspect and settle payments that were charged but not recorded.\n\n")
		fmt.Fprintf(os.Stderr, "Actions:\n")
		fmt.Fprintf(os.Stderr, "  list        Show pending reconciliations\n")
		fmt.Fprintf(os.Stderr, "  settle      Settle one reconciliation (-id)\n")
		fmt.Fprintf(os.Stderr, "  settle-all  Settle every pending reconciliation up to -limit\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if len(args) == 0 {
		fs.Usage()
		return errors.New("an action is required")
	}
	cmd.Action = args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	cmd.ID = uint(id)

	switch cmd.Action {
	case reconcileList, reconcileAll:
	case reconcileSettle:
		if cmd.ID == 0 {
			return fmt.Errorf("required flag -id not provided")
		}
	default:
		fs.Usage()
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	if cmd.Limit <= 0 {
		return fmt.Errorf("-limit must be positive")
	}
	return nil
}

func (cmd *ReconcileCommand) Run() error {
	db, _, err := openDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	return cmd.run(context.Background(), db)
}

func (cmd *ReconcileCommand) run(ctx context.Context, db *database.Database) error {
	logger := zap.NewNop()
	if cmd.Verbose {
		logger, _ = zap.NewDevelopment()
	}

	auditor := audit.NewService(auditrepo.NewRepository(db.DB), logger)
	defer auditor.Wait()
	service := reconcile.NewService(ledger.NewRepository(db.DB), auditor, logger, cmd.MaxAttempts)

	switch cmd.Action {
	case reconcileList:
		return cmd.list(ctx, service)
	case reconcileSettle:
		outcome, err := service.Settle(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("settle reconciliation %d: %w", cmd.ID, err)
		}
		fmt.Fprintf(cmd.Out, "Reconciliation %d: %s\n", cmd.ID, outcome)
		return nil
	default:
		settled, failed, err := service.SettleAll(ctx, cmd.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Out, "Settled: %d\nFailed: %d\n", settled, failed)
		if failed > 0 {
			return fmt.Errorf("%d reconciliations could not be settled", failed)
		}
		return nil
	}
}

func (cmd *ReconcileCommand) list(ctx context.Context, service *reconcile.Service) error {
	pending, err := service.Pending(ctx, cmd.Limit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.Out, "No pending reconciliations")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tBOOK\tCHARGE\tAMOUNT\tATTEMPTS\tCREATED")
	for _, rec := range pending {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d %s\t%d\t%s\n",
			rec.ID, rec.UserID, rec.BookID, rec.ChargeRef, rec.Amount, rec.Currency,
			rec.Attempts, rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
