package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock <id>",
	Short: "Take the lock on a testbench",
	Long: `Take the lock on a testbench for the configured user.

Locks are advisory: taking a lock someone else holds overwrites it, and
the previous holder is printed as a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: runLock,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <id>",
	Short: "Release the lock on a testbench",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlock,
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}

func runLock(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	rec, err := s.ctrl.GetLock(cmd.Context(), id, true)
	if err != nil {
		return err
	}
	if !rec.Free() && rec.Holder != s.ctrl.User() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s was held by %s\n", id, rec.Holder)
	}
	if err := s.ctrl.Acquire(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "locked %s as %s\n", id, s.ctrl.User())
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	id := args[0]
	if err := s.ctrl.UnsetLock(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", id)
	return nil
}
