package table

import (
	"strings"

	"github.com/pterm/pterm"
)

// PrintTableNoPad renders data as a table without the trailing padding pterm
// adds to the last column.
func PrintTableNoPad(data pterm.TableData, hasHeader bool) {
	t := pterm.DefaultTable.WithData(data)
	if hasHeader {
		t = t.WithHasHeader()
	}
	out, err := t.Srender()
	if err != nil {
		pterm.Error.Printf("failed to render table: %v\n", err)
		return
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	pterm.Println(strings.Join(lines, "\n"))
}
