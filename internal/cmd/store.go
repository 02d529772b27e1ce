package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/testbench-tools/taco/internal/lockstore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Show or change the shared lock store",
	RunE:  runStoreShow,
}

var storeSetCmd = &cobra.Command{
	Use:   "set <location>",
	Short: "Use the lock store at location",
	Long: `Use the lock store at location and save it in the config file.

location is a SQLite database file, usually on a network share, or a
postgres:// URL. The store is opened and every testbench in the topology
is registered before the setting is saved; a store that cannot be opened
is not saved. An empty location switches to working without a store.`,
	Args: cobra.ExactArgs(1),
	RunE: runStoreSet,
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the lock records in the configured store",
	Args:  cobra.NoArgs,
	RunE:  runStoreShow,
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeSetCmd)
	storeCmd.AddCommand(storeShowCmd)
}

func runStoreSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo := repository()
	cfg, err := repo.Load()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Topology.File != "" {
		if res := s.ctrl.LoadTopologyFile(ctx, cfg.Topology.File); !res.OK {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", res.Message)
		}
	}
	if err := printResult(cmd.OutOrStdout(), s.ctrl.ConfigureStore(ctx, args[0])); err != nil {
		return err
	}

	cfg.Store.Location = args[0]
	if err := repo.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", repo.Path())
	return nil
}

func runStoreShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := repository().Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cfg.Store.Location == "" {
		fmt.Fprintln(out, "no lock store configured")
		return nil
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	st, err := lockstore.Open(ctx, cfg.Store.Location, lockstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	addrs, err := st.Addresses(ctx)
	if err != nil {
		return err
	}
	recs, err := st.GetLocks(ctx, addrs)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "store: %s (%s)\n\n", st.Location(), st.Driver())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tHOLDER\tSINCE")
	for _, a := range addrs {
		rec := recs[a]
		holder, since := "-", "-"
		if !rec.Free() {
			holder = rec.Holder
			since = rec.HeldSince.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a, holder, since)
	}
	return tw.Flush()
}
