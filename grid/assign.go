package grid

const (
	// DefaultColumns 是原稿纸每行的格数。
	DefaultColumns = 10
	// MinRows 是书写区域的最少行数。
	MinRows = 5
	// MaxRows 与 MaxColumns 是文档中可声明的行数、格数上限。
	MaxRows    = 1000
	MaxColumns = 100
	// MaxCells 是一次排版最多生成的格数，超出时减少行数。
	MaxCells = MaxRows * MaxColumns
)

// Cell 是原稿纸中的一格：一个主字形，外加一个可选的、被挤进同一格的伴随字形。
type Cell struct {
	Primary   Glyph  `json:"primary"`
	Companion *Glyph `json:"companion,omitempty"`
}

// Blank 报告该格是否没有可见内容（空格或填充格）。
func (c Cell) Blank() bool {
	return c.Companion == nil && (c.Primary.Text == "" || c.Primary.IsSpace())
}

// Grid 是排版结果，len(Cells) 恒等于 Rows*Columns。
type Grid struct {
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
	Cells   []Cell `json:"cells"`
	// Used 是由文本产生的格数，其余为填充的空格。
	Used int `json:"used"`
	// Overflow 表示文本在格子用尽时仍有可见内容未排入。
	Overflow bool `json:"overflow,omitempty"`
}

// Row 返回第 i 行（从 0 开始）的格子。
func (g Grid) Row(i int) []Cell {
	if i < 0 || i >= g.Rows {
		return nil
	}
	return g.Cells[i*g.Columns : (i+1)*g.Columns]
}

// RowSlices 按行分组返回全部格子。
func (g Grid) RowSlices() [][]Cell {
	rows := make([][]Cell, 0, g.Rows)
	for i := 0; i < g.Rows; i++ {
		rows = append(rows, g.Row(i))
	}
	return rows
}

// ClampRows 将行数提升到至少 MinRows。BuildGrid 不会自行修正行数，由调用方负责。
func ClampRows(rows int) int {
	if rows < MinRows {
		return MinRows
	}
	return rows
}

// CountRequiredRows 预测文本需要的行数，用于自动调整书写区域的高度。
func CountRequiredRows(raw string, columns int) int {
	columns = normalizeColumns(columns)
	used, _ := assign(Normalize(raw), columns, -1, nil)
	rows := (used + columns - 1) / columns
	return ClampRows(rows)
}

// BuildGrid 将文本排入 rows×columns 的格子，不足部分以空格补齐。
// rows 应由调用方预先限制为不小于 MinRows；格数超过 MaxCells 时行数会被截到上限内。
func BuildGrid(raw string, rows, columns int) Grid {
	return BuildGridText(Normalize(raw), rows, columns)
}

// BuildGridText 与 BuildGrid 相同，但接受已经规范化的文本。
func BuildGridText(text Text, rows, columns int) Grid {
	columns = normalizeColumns(columns)
	if rows < 0 {
		rows = 0
	}
	if rows > MaxCells/columns {
		rows = MaxCells / columns
	}
	total := rows * columns
	cells := make([]Cell, 0, total)
	used, overflow := assign(text, columns, total, func(c Cell) {
		cells = append(cells, c)
	})
	for len(cells) < total {
		cells = append(cells, Cell{})
	}
	return Grid{
		Columns:  columns,
		Rows:     rows,
		Cells:    cells,
		Used:     used,
		Overflow: overflow,
	}
}

func normalizeColumns(columns int) int {
	if columns < 1 {
		return DefaultColumns
	}
	return columns
}

// assign 是行数预测与完整排版共用的唯一一次遍历。
// limit < 0 表示不限格数；emit 为 nil 时只计数不生成格子。
// 返回产生的格数，以及是否因为达到 limit 而留下了可见字形。
func assign(text Text, columns, limit int, emit func(Cell)) (int, bool) {
	count := 0
	i := 0
	for i < len(text) {
		if limit >= 0 && count >= limit {
			break
		}
		cur := text[i]

		// 行首空格不占格
		if cur.IsSpace() && count > 0 && count%columns == 0 {
			i++
			continue
		}

		endOfLine := (count+1)%columns == 0
		if endOfLine && i+1 < len(text) && text[i+1].ForbiddenAtLineStart() {
			if emit != nil {
				companion := text[i+1]
				emit(Cell{Primary: cur, Companion: &companion})
			}
			i += 2
		} else {
			if emit != nil {
				emit(Cell{Primary: cur})
			}
			i++
		}
		count++
	}
	return count, hasVisible(text[i:])
}

func hasVisible(rest Text) bool {
	for _, g := range rest {
		if !g.IsSpace() {
			return true
		}
	}
	return false
}
