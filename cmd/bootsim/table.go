package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/wnxd/efiboot/firmware"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	rightStyle  = cellStyle.Align(lipgloss.Right)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

// regionTable lays out a memory map one region per row.
func regionTable(regions []firmware.MemoryDescriptor) string {
	rows := make([][]string, len(regions))
	var usable uint64
	for i, r := range regions {
		size := r.PageCount * firmware.PageSize
		if r.Type.Usable() {
			usable += size
		}
		rows[i] = []string{
			fmt.Sprint(i),
			r.Type.String(),
			fmt.Sprintf("%#016x", r.PhysStart),
			fmt.Sprintf("%#016x", r.End()),
			fmt.Sprint(r.PageCount),
			humanize.IBytes(size),
			r.Attribute.String(),
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "TYPE", "START", "END", "PAGES", "SIZE", "ATTRIBUTES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 4 || col == 5:
				return rightStyle
			}
			return cellStyle
		})
	return t.String() + "\n" + fmt.Sprintf("%d regions, %s usable after boot\n", len(regions), humanize.IBytes(usable))
}
