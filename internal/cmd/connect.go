package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var connectDetach bool

var connectCmd = &cobra.Command{
	Use:   "connect <id>",
	Short: "Lock a testbench and open a remote desktop session to it",
	Long: `Lock a testbench and open a remote desktop session to it.

taco keeps running until the session exits and then releases the lock.
With --detach it returns right away and the lock stays held until it is
released with "taco unlock".`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().BoolVarP(&connectDetach, "detach", "d", false, "return once the session has started and keep the lock")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	pid, err := s.ctrl.LaunchSession(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "connected to %s (pid %d)\n", id, pid)
	if connectDetach || s.ctrl.StoreLocation() == "" {
		return nil
	}

	fmt.Fprintln(out, "waiting for the session to exit")
	ticker := time.NewTicker(s.cfg.TUI.TickInterval())
	defer ticker.Stop()
	for {
		if _, running := s.ctrl.Launched(id); !running {
			fmt.Fprintf(out, "session to %s ended\n", id)
			return nil
		}
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "stopped waiting; %s stays locked\n", id)
			return nil
		case <-ticker.C:
		}
		// Statuses refreshes once the cache is stale, which is when exited
		// sessions are reconciled.
		if _, err := s.ctrl.Statuses(ctx, false); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}
}
