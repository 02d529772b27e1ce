package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/testbench-tools/taco/internal/access"
	"github.com/testbench-tools/taco/internal/tui"
)

var (
	statusForce bool
	statusMatch string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds each testbench",
	Long: `Show every testbench with its lock holder and how long it has been held.

--match filters testbench ids with a glob pattern, e.g. "rack1-*".`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusForce, "force", "f", false, "refresh from the lock store even if the cache is fresh")
	statusCmd.Flags().StringVarP(&statusMatch, "match", "m", "", "only show testbenches whose id matches this glob")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var match glob.Glob
	if statusMatch != "" {
		g, err := glob.Compile(statusMatch)
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
		match = g
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	statuses, err := s.ctrl.Statuses(cmd.Context(), statusForce)
	if err != nil {
		return err
	}
	if match != nil {
		kept := statuses[:0]
		for _, st := range statuses {
			if match.Match(st.Resource.ID) {
				kept = append(kept, st)
			}
		}
		statuses = kept
	}

	rows := statusRows(statuses, time.Now())
	out := cmd.OutOrStdout()
	if isTerminal(out) {
		_, err = fmt.Fprintln(out, styledTable(rows, s.ctrl.User()))
		return err
	}
	return plainTable(out, rows)
}

var statusHeaders = []string{"ID", "ADDRESS", "HOLDER", "HELD FOR"}

// statusRows renders one row per status: id, address, holder, age.
func statusRows(statuses []access.Status, now time.Time) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		holder, age := "-", "-"
		switch {
		case !st.Known:
			holder = "?"
		case !st.Record.Free():
			holder = st.Record.Holder
			age = tui.FormatAge(now.Sub(st.Record.HeldSince))
		}
		rows = append(rows, []string{st.Resource.ID, st.Resource.Address, holder, age})
	}
	return rows
}

func plainTable(w io.Writer, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range append([][]string{statusHeaders}, rows...) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r[0], r[1], r[2], r[3])
	}
	return tw.Flush()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	freeCell    = cellStyle.Foreground(lipgloss.Color("#10B981"))
	ownCell     = cellStyle.Foreground(lipgloss.Color("#60A5FA")).Bold(true)
	lockedCell  = cellStyle.Foreground(lipgloss.Color("#F87171"))
)

func styledTable(rows [][]string, user string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))).
		Headers(statusHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != 2 {
				return cellStyle
			}
			switch rows[row][2] {
			case "-":
				return freeCell
			case user:
				return ownCell
			default:
				return lockedCell
			}
		}).
		String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
