package parser

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// Table detection thresholds.
const (
	tableRowGap  = 2.5 // Max baseline distance between table rows, in font sizes.
	columnSlack  = 2.0 // Points a cell may stray outside its column.
	maxCellRunes = 40  // Longer average cells read as prose columns.
	keyCellRunes = 24  // At least one column must hold only cells this short.
	minTableCols = 2
	minTableRows = 2 // A header row plus at least one body row.
)

// tableRun is a table detected on rows[first..last].
type tableRun struct {
	first, last int
	table       doctree.TableData
}

type tableCell struct {
	text   string
	x0, x1 float64
}

type columnSpan struct {
	x0, x1 float64
}

// detectTables finds runs of adjacent rows that split into the same number
// of horizontally aligned cells. Detection is purely geometric, so ruled and
// unruled tables are found alike. The first row of a run becomes the header.
func detectTables(rows []*glyphRow, page int) []tableRun {
	var runs []tableRun
	for i := 0; i < len(rows); {
		first := rowCells(rows[i])
		if len(first) < minTableCols {
			i++
			continue
		}

		cols := make([]columnSpan, len(first))
		for k, c := range first {
			cols[k] = columnSpan{c.x0, c.x1}
		}
		grid := [][]tableCell{first}
		j := i + 1
		for ; j < len(rows); j++ {
			cells := rowCells(rows[j])
			if !rowsAdjacent(rows[j-1], rows[j]) || !fitsColumns(cells, cols) {
				break
			}
			for k, c := range cells {
				cols[k].x0 = math.Min(cols[k].x0, c.x0)
				cols[k].x1 = math.Max(cols[k].x1, c.x1)
			}
			grid = append(grid, cells)
		}

		if len(grid) >= minTableRows && looksTabular(grid) {
			runs = append(runs, tableRun{first: i, last: j - 1, table: buildTable(rows[i:j], grid, page)})
			i = j
			continue
		}
		i++
	}
	return runs
}

// rowCells returns the row's non-blank fragments in reading order.
func rowCells(row *glyphRow) []tableCell {
	var cells []tableCell
	for _, fr := range row.frags {
		text := strings.TrimSpace(norm.NFC.String(fr.text.String()))
		if text == "" {
			continue
		}
		cells = append(cells, tableCell{text: text, x0: fr.x0, x1: fr.x1})
	}
	slices.SortFunc(cells, func(a, b tableCell) int { return cmp.Compare(a.x0, b.x0) })
	return cells
}

func rowsAdjacent(a, b *glyphRow) bool {
	return math.Abs(a.y-b.y) <= tableRowGap*math.Max(a.size, b.size)
}

// fitsColumns reports whether every cell lands in its own column without
// reaching into the next one.
func fitsColumns(cells []tableCell, cols []columnSpan) bool {
	if len(cells) != len(cols) {
		return false
	}
	for k, c := range cells {
		if c.x1 < cols[k].x0-columnSlack || c.x0 > cols[k].x1+columnSlack {
			return false
		}
		if k+1 < len(cols) && c.x1 > cols[k+1].x0+columnSlack {
			return false
		}
	}
	return true
}

// looksTabular rejects runs that are really multi-column prose: tables have
// short cells on average and at least one column of short values.
func looksTabular(grid [][]tableCell) bool {
	var runes, cells int
	keyColumn := make([]bool, len(grid[0]))
	for k := range keyColumn {
		keyColumn[k] = true
	}
	for _, row := range grid {
		for k, c := range row {
			n := utf8.RuneCountInString(c.text)
			runes += n
			cells++
			if n > keyCellRunes {
				keyColumn[k] = false
			}
		}
	}
	if float64(runes)/float64(cells) > maxCellRunes {
		return false
	}
	return slices.Contains(keyColumn, true)
}

func buildTable(rows []*glyphRow, grid [][]tableCell, page int) doctree.TableData {
	t := doctree.TableData{Page: page}
	for i, cells := range grid {
		texts := make([]string, len(cells))
		for k, c := range cells {
			texts[k] = c.text
		}
		if i == 0 {
			t.Headers = texts
		} else {
			t.Rows = append(t.Rows, texts)
		}
	}

	box := doctree.BBox{rows[0].x0, rows[0].y, rows[0].x1, rows[0].y + rows[0].size}
	for _, row := range rows[1:] {
		box[0] = math.Min(box[0], row.x0)
		box[1] = math.Min(box[1], row.y)
		box[2] = math.Max(box[2], row.x1)
		box[3] = math.Max(box[3], row.y+row.size)
	}
	t.BBox = &box
	return t
}
