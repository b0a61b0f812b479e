package utils

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable returns a table rendering to stdout, header is its first row when given.
func NewTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	// keep column names as typed instead of upper casing them
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(os.Stdout)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}
