package media

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// renderCandidateTable formats stream candidates for the interactive prompt.
func renderCandidateTable(candidates []StreamDescriptor) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	tw.AppendHeader(table.Row{"#", "Stream", "Lang", "Codec", "Title", "Preview"})
	for i, c := range candidates {
		tw.AppendRow(table.Row{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Index),
			c.Language,
			c.Codec,
			c.Title,
			c.Preview,
		})
	}

	return tw.Render()
}
