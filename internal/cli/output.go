package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/ui/widgets"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return &domain.ValidationError{Field: "output", Value: f, Reason: "must be table, json or yaml"}
}

// encode writes v as json or yaml.
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}

func renderStringTable(headers []string, data [][]string) string {
	out := &strings.Builder{}
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
	return out.String()
}

// renderTable shortens column col when the table is wider than the
// terminal w is attached to.
func renderTable(w io.Writer, col int, headers []string, data [][]string) {
	out := renderStringTable(headers, data)

	width := terminalWidth(w)
	lines := strings.Split(out, "\n")
	overflow := tablewriter.DisplayWidth(lines[0]) - width
	if width == 0 || overflow <= 0 {
		fmt.Fprint(w, out)
		return
	}

	longest := 0
	for _, row := range data {
		if l := tablewriter.DisplayWidth(row[col]); l > longest {
			longest = l
		}
	}
	maxLen := longest - overflow
	if maxLen < 5 {
		// a few characters are unreadable anyway
		maxLen = longest
	}
	for _, row := range data {
		row[col] = widgets.Truncate(row[col], maxLen)
	}
	fmt.Fprint(w, renderStringTable(headers, data))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func colorState(s domain.VMState) string {
	switch s {
	case domain.StateRunning:
		return green(string(s))
	case domain.StateStopped:
		return red(string(s))
	case domain.StatePaused:
		return yellow(string(s))
	default:
		return faint(string(s))
	}
}

func printOutcome(w io.Writer, action domain.Action, o domain.CommandOutcome) {
	if o.OK {
		line := fmt.Sprintf("%s %d %s", green("✓"), o.ID, action)
		if o.Task != "" {
			line += " " + faint(o.Task)
		}
		if o.Detail != "" {
			line += " (" + o.Detail + ")"
		}
		fmt.Fprintln(w, line)
		return
	}
	fmt.Fprintf(w, "%s %d %s: %s\n", red("✗"), o.ID, action, o.Detail)
}
