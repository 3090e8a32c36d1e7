package query

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Print writes each result as an aligned text table headed by its name.
// Failed queries print their error in place of rows. NULL cells print as
// NULL so they stay distinct from empty text.
func Print(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "== %s\n", r.Name)
		if r.Err != nil {
			fmt.Fprintf(tw, "error: %v\n", r.Err)
			continue
		}
		fmt.Fprintln(tw, strings.Join(r.Columns, "\t"))
		cells := make([]string, len(r.Columns))
		for _, row := range r.Rows {
			for j, v := range row {
				cells[j] = formatCell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		fmt.Fprintf(tw, "(%d rows)\n", len(r.Rows))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
