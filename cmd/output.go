package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/xkilldash9x/cadence/internal/counter"
	"github.com/xkilldash9x/cadence/internal/journal"
)

const (
	formatTable = "table"
	formatJSONL = "jsonl"
)

// resolveFormat maps "auto" to a table on terminals and JSONL otherwise.
func resolveFormat(format string, out io.Writer) string {
	format = strings.ToLower(format)
	if format != "" && format != "auto" {
		return format
	}
	if isTerminal(out) {
		return formatTable
	}
	return formatJSONL
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// historyRecord is the JSONL shape of one journal entry.
type historyRecord struct {
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time"`
	Action    string `json:"action"`
}

func writeEntries(w io.Writer, entries []journal.Entry, format string) error {
	switch format {
	case formatTable:
		return writeEntriesTable(w, entries)
	case formatJSONL:
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		for _, e := range entries {
			rec := historyRecord{Timestamp: e.Timestamp, Time: e.Time().UTC().Format(time.RFC3339Nano), Action: e.Label}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	return tw
}

func writeEntriesTable(w io.Writer, entries []journal.Entry) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft},
	})
	tw.AppendHeader(table.Row{"#", "Time", "Action"})
	for i, e := range entries {
		tw.AppendRow(table.Row{i + 1, e.Time().Local().Format("2006-01-02 15:04:05"), e.Label})
	}
	if len(entries) == 0 {
		tw.AppendRow(table.Row{"-", "(no actions recorded)", "-"})
	}
	tw.AppendFooter(table.Row{"", "Total", len(entries)})
	_ = tw.Render()
	return nil
}

func writeCounts(w io.Writer, rows []counter.Entry, total int) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	tw.AppendHeader(table.Row{"Action", "Count"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.Key, r.Value})
	}
	tw.AppendFooter(table.Row{"Total", total})
	_ = tw.Render()
	return nil
}
