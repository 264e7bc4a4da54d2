// Package table assembles repository records into a column-oriented frame
// and renders short previews of it.
package table

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"

	"locrepos/models"
)

// DefaultHeadRows matches the usual size of a head() preview.
const DefaultHeadRows = 5

const maxCellWidth = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Frame is an immutable table of repository records.
type Frame struct {
	columns []string
	records []models.Repository
}

// FromRecords builds a frame over records. The slice is copied.
func FromRecords(records []models.Repository) *Frame {
	return &Frame{
		columns: append([]string(nil), models.RecordColumns...),
		records: append([]models.Repository(nil), records...),
	}
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.records) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

// Records returns the underlying rows.
func (f *Frame) Records() []models.Repository {
	return append([]models.Repository(nil), f.records...)
}

// Rows returns every record rendered as strings.
func (f *Frame) Rows() [][]string {
	rows := make([][]string, 0, len(f.records))
	for _, r := range f.records {
		rows = append(rows, r.Values())
	}
	return rows
}

// Head returns a frame with the first n rows. A negative n yields an empty frame.
func (f *Frame) Head(n int) *Frame {
	n = max(0, min(n, len(f.records)))
	return &Frame{columns: f.columns, records: f.records[:n]}
}

// Render draws the frame as a bordered text table with a header row.
func (f *Frame) Render() string {
	rows := f.Rows()
	for _, row := range rows {
		for i, cell := range row {
			row[i] = truncate(cell, maxCellWidth)
		}
	}

	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(f.columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.Render()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
