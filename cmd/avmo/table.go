package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/AVMO/internal/domain"
)

// renderSummaryTable 把 RunReport 渲染成终端友好的结果总览表（只在交互模式输出）。
func renderSummaryTable(rr domain.RunReport) string {
	headers := []string{"CODE", "ATTR", "STATUS", "FILES", "CLEANUP", "NOTE"}
	rows := make([][]string, 0, len(rr.Items))
	for _, it := range rr.Items {
		code := it.Code
		if code == "" && len(it.Files) > 0 {
			code = it.Files[0].Src
		}

		cleanup := ""
		if it.CleanupDone {
			cleanup = "done"
		} else if len(it.CleanupReasons) > 0 {
			cleanup = "blocked"
		}

		note := it.ErrorCode
		if note == "" && len(it.Warnings) > 0 {
			note = strings.Join(it.Warnings, ",")
		}

		rows = append(rows, []string{
			code,
			it.Attr,
			it.Status,
			fmt.Sprintf("%d", len(it.Files)),
			cleanup,
			shorten(note, 60),
		})
	}
	return renderTable(headers, rows, []columnAlignment{
		alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft,
	})
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
