package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artfolio/cartstore/pkg/errors"
	appfsm "github.com/artfolio/cartstore/pkg/fsm"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/superfly/fsm"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch every product snapshot in the user's cart",
	Long:  `Runs the cart-refresh workflow: load lines, refresh snapshots from the catalog, and record the final count. Individual product failures are reported but do not fail the run.`,
	RunE:  runRefresh,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached snapshots no cart line references",
	RunE:  runPrune,
}

func init() {
	refreshCmd.Flags().StringVar(&userID, "user", "", "Owning user id")
	refreshCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(pruneCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := ensureDirectories(cfg.FSMDBPath); err != nil {
		return err
	}

	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := appfsm.NewMachine(store, cfg.FSMMaxRetries)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	runID := uuid.NewString()
	req := &appfsm.RefreshRequest{UserID: userID}
	resp := &appfsm.RefreshResponse{}

	version, err := start(ctx, runID, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	slog.Info("fsm started", "run_id", runID, "version", version)

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "FSM execution failed")
	}

	fmt.Printf("Refreshed %d of %d line(s); cart holds %d item(s)\n", resp.Refreshed, resp.LineCount, resp.ItemCount)
	if len(resp.Failed) > 0 {
		fmt.Printf("Failed: %s\n", strings.Join(resp.Failed, ", "))
	}
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	report, err := store.PruneSnapshots(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "prune failed")
	}
	fmt.Printf("Pruned %d artwork and %d material snapshot(s)\n", report.Artworks, report.Materials)
	return nil
}
