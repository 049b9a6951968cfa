package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"shelfsync/internal/pipeline"
)

// printRunReport renders the per-collection results as a table, followed
// by the run-level outcome lines.
func printRunReport(report *pipeline.RunReport) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Collection", "Backend", "Status", "Entries", "Detail"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	for _, cr := range report.Collections {
		detail := ""
		if cr.Err != nil {
			detail = cr.Err.Error()
		}
		tw.AppendRow(table.Row{cr.Name, cr.Backend, string(cr.Status), strconv.Itoa(cr.Entries), detail})
	}
	fmt.Println(tw.Render())

	if report.Selected != nil {
		delivered := "delivery failed"
		if report.Delivered {
			delivered = "delivered"
		}
		fmt.Printf("Selected: %s (%s)\n", report.Selected.Title, delivered)
	}
	if report.Commit.Committed {
		fmt.Printf("Committed: %s\n", report.Commit.Ref)
	} else {
		fmt.Println("No changes to commit")
	}
}
