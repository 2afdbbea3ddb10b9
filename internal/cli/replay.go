package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
)

var (
	replayKeyStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	replayDoneStyle = lipgloss.NewStyle().Foreground(colorGreen)
)

// =============================================================================
// replay
// =============================================================================

type replayOpts struct {
	plain bool
	flags paramFlags
}

// replayCommand creates the replay command.
func (c *CLI) replayCommand() *cobra.Command {
	var opts replayOpts

	cmd := &cobra.Command{
		Use:   "replay [scene]",
		Short: "Step through the transactions of a scene",
		Long: `Step through the transactions of a scene one commit at a time.

Each step shows the outcome of every queued operation and the connectors
the commit rerouted. Use --plain to print all steps without the
interactive view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadScene(args[0], opts.flags.params(cmd))
			if err != nil {
				return err
			}
			// Router logs would tear the interactive view.
			r, err := router.New(l.params, router.WithHooks(c.Counters))
			if err != nil {
				return err
			}
			m := newReplayModel(l.path, l.scene, r)

			if opts.plain {
				return m.runPlain(cmd.OutOrStdout())
			}
			p := tea.NewProgram(m, tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print every step instead of the interactive view")
	opts.flags.register(cmd)

	return cmd
}

// =============================================================================
// replayModel
// =============================================================================

// replayModel is the bubbletea model of the replay command. Each step is
// committed on demand.
type replayModel struct {
	path    string
	scene   *scene.Scene
	router  *router.Router
	results []scene.StepResult
	snap    *scene.Snapshot
}

func newReplayModel(path string, s *scene.Scene, r *router.Router) replayModel {
	return replayModel{path: path, scene: s, router: r, snap: scene.Take(r)}
}

// finished reports whether every step has been committed.
func (m replayModel) finished() bool {
	return len(m.results) == len(m.scene.Steps)
}

// step commits the next step.
func (m replayModel) step() replayModel {
	if m.finished() {
		return m
	}
	res := scene.RunStep(m.scene, len(m.results), m.router)
	m.results = append(m.results[:len(m.results):len(m.results)], res)
	m.snap = scene.Take(m.router)
	return m
}

func (m replayModel) Init() tea.Cmd {
	return nil
}

func (m replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "n", " ", "right", "l":
		m = m.step()
	case "a", "end":
		for !m.finished() {
			m = m.step()
		}
	}
	return m, nil
}

func (m replayModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Replay " + m.path))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("step %d of %d", len(m.results), len(m.scene.Steps))))
	b.WriteString("\n\n")

	if n := len(m.results); n > 0 {
		b.WriteString(stepView(m.results[n-1]))
		b.WriteString("\n")
		if len(m.snap.Connectors) > 0 {
			b.WriteString(routeTable(m.snap))
			b.WriteString("\n")
		}
	}

	if m.finished() {
		b.WriteString(replayDoneStyle.Render("All steps committed."))
		b.WriteString("  ")
		b.WriteString(replayKeyStyle.Render("q") + StyleDim.Render(" quit"))
	} else {
		b.WriteString(replayKeyStyle.Render("n") + StyleDim.Render(" next  "))
		b.WriteString(replayKeyStyle.Render("a") + StyleDim.Render(" all  "))
		b.WriteString(replayKeyStyle.Render("q") + StyleDim.Render(" quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// runPlain commits every remaining step and writes each to w.
func (m replayModel) runPlain(w io.Writer) error {
	for !m.finished() {
		m = m.step()
		if _, err := fmt.Fprintln(w, stepView(m.results[len(m.results)-1])); err != nil {
			return err
		}
	}
	if len(m.snap.Connectors) > 0 {
		fmt.Fprintln(w, routeTable(m.snap))
	}
	_, err := fmt.Fprintln(w, routeSummary(m.snap, false))
	return err
}

// =============================================================================
// Step rendering
// =============================================================================

// stepRow is one operation outcome of a step.
type stepRow struct {
	op, id, result string
	failed         bool
}

// stepRows lists rejected operations first, then the outcome of every
// operation the commit applied, in queue order.
func stepRows(res scene.StepResult) []stepRow {
	rows := make([]stepRow, 0, len(res.Rejected)+len(res.Report.Items))
	for _, rj := range res.Rejected {
		rows = append(rows, stepRow{
			op:     rj.Op.Op,
			id:     rj.Op.ID,
			result: "rejected: " + errors.UserMessage(rj.Err),
			failed: true,
		})
	}
	for _, it := range res.Report.Items {
		row := stepRow{op: it.Op, id: it.ID, result: "ok"}
		if it.Err != nil {
			row.result = errors.UserMessage(it.Err)
			row.failed = true
		}
		rows = append(rows, row)
	}
	return rows
}

func stepView(res scene.StepResult) string {
	var b strings.Builder

	title := fmt.Sprintf("Step %d", res.Index+1)
	if res.Name != "" {
		title += ": " + res.Name
	}
	b.WriteString(StyleValue.Bold(true).Render(title))
	b.WriteString("\n")

	rows := stepRows(res)
	if len(rows) == 0 {
		b.WriteString(StyleDim.Render("  no operations"))
		b.WriteString("\n")
	} else {
		cells := make([][]string, len(rows))
		for i, r := range rows {
			cells[i] = []string{r.op, r.id, r.result}
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(styleBorder).
			Headers("Operation", "ID", "Result").
			Rows(cells...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == -1 {
					return styleHeader.Padding(0, 1)
				}
				base := lipgloss.NewStyle().Padding(0, 1)
				if row < len(rows) && rows[row].failed {
					return base.Foreground(colorRed)
				}
				if col == 2 {
					return base.Foreground(colorGreen)
				}
				return base
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	rep := res.Report
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d rerouted · %d nudged · %d unroutable · %s",
		len(rep.Rerouted), len(rep.Nudged), len(rep.Failed), rep.Duration.Round(time.Microsecond))))
	return b.String()
}
