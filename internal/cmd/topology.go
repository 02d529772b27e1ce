package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/testbench-tools/taco/internal/topology"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Show or change the testbench topology file",
	RunE:  runTopologyShow,
}

var topologySetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Use the topology in file",
	Long: `Use the testbench topology in file and save its path in the config file.

The file is a JSON or YAML list of blocks, each mapping testbench ids to
their address, login name and children. It is parsed before the setting is
saved; an invalid file is not saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runTopologySet,
}

var topologyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configured topology",
	Args:  cobra.NoArgs,
	RunE:  runTopologyShow,
}

func init() {
	rootCmd.AddCommand(topologyCmd)
	topologyCmd.AddCommand(topologySetCmd)
	topologyCmd.AddCommand(topologyShowCmd)
}

func runTopologySet(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	t, err := topology.LoadFile(path)
	if err != nil {
		return err
	}

	repo := repository()
	cfg, err := repo.Load()
	if err != nil {
		return err
	}
	cfg.Topology.File = path
	if err := repo.Save(cfg); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "loaded %d testbenches from %s\n", t.Len(), path)
	fmt.Fprintf(out, "Config saved to %s\n", repo.Path())
	return nil
}

func runTopologyShow(cmd *cobra.Command, args []string) error {
	cfg, err := repository().Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cfg.Topology.File == "" {
		fmt.Fprintln(out, "no testbench topology configured")
		return nil
	}
	t, err := topology.LoadFile(cfg.Topology.File)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%d testbenches)\n", cfg.Topology.File, t.Len())
	for i, b := range t.Blocks {
		fmt.Fprintf(out, "\nblock %d\n", i+1)
		printNodes(out, b.Nodes, 1)
	}
	return nil
}

func printNodes(w io.Writer, nodes []topology.Node, depth int) {
	for _, n := range nodes {
		line := strings.Repeat("  ", depth) + n.ID
		if n.Address != n.ID {
			line += " (" + n.Address + ")"
		}
		if n.LoginName != "" {
			line += " as " + n.LoginName
		}
		fmt.Fprintln(w, line)
		printNodes(w, n.Children, depth+1)
	}
}
