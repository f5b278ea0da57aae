// Package preview 在终端中以原稿纸样式显示排版网格。
package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ByLCY/grimilgi/grid"
)

// Options 控制终端预览。
type Options struct {
	// Color 为 true 时使用 ANSI 颜色绘制格线与伴随字形。
	Color bool
	// RowNumbers 在每行左侧显示行号。
	RowNumbers bool
}

var (
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("71"))
	companionStyle = lipgloss.NewStyle().Faint(true)
	footerStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	overflowStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

// 全角字符固定按 2 列计，避免受 locale 影响。
var cond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

type painter struct{ color bool }

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Render 把网格画成带边框的文本，每格宽度取所有格子内容中的最大显示宽度（至少 2 列）。
func Render(g grid.Grid, opts Options) string {
	if g.Columns <= 0 || g.Rows <= 0 {
		return ""
	}
	p := painter{color: opts.Color}
	width := cellWidth(g)
	gutter := 0
	if opts.RowNumbers {
		gutter = len(fmt.Sprint(g.Rows)) + 1
	}

	var b strings.Builder
	rule := func(left, mid, right string) {
		b.WriteString(strings.Repeat(" ", gutter))
		seg := strings.Repeat("─", width)
		b.WriteString(p.paint(borderStyle, left+strings.Repeat(seg+mid, g.Columns-1)+seg+right))
		b.WriteByte('\n')
	}

	rule("┌", "┬", "┐")
	for r, row := range g.RowSlices() {
		if opts.RowNumbers {
			b.WriteString(cond.FillLeft(fmt.Sprint(r+1), gutter-1))
			b.WriteByte(' ')
		}
		b.WriteString(p.paint(borderStyle, "│"))
		for _, c := range row {
			b.WriteString(renderCell(c, width, p))
			b.WriteString(p.paint(borderStyle, "│"))
		}
		b.WriteByte('\n')
		if r < g.Rows-1 {
			rule("├", "┼", "┤")
		}
	}
	rule("└", "┴", "┘")

	footer := fmt.Sprintf("%d×%d, %d cells used", g.Columns, g.Rows, g.Used)
	b.WriteString(p.paint(footerStyle, footer))
	if g.Overflow {
		b.WriteString(" ")
		b.WriteString(p.paint(overflowStyle, "(overflow)"))
	}
	b.WriteByte('\n')
	return b.String()
}

func cellText(c grid.Cell) (string, string) {
	primary := c.Primary.Text
	if c.Primary.IsSpace() {
		primary = ""
	}
	companion := ""
	if c.Companion != nil {
		companion = c.Companion.Text
	}
	return primary, companion
}

func renderCell(c grid.Cell, width int, p painter) string {
	primary, companion := cellText(c)
	used := cond.StringWidth(primary) + cond.StringWidth(companion)
	pad := ""
	if used < width {
		pad = strings.Repeat(" ", width-used)
	}
	return primary + p.paint(companionStyle, companion) + pad
}

func cellWidth(g grid.Grid) int {
	w := 2
	for _, c := range g.Cells {
		primary, companion := cellText(c)
		if cw := cond.StringWidth(primary) + cond.StringWidth(companion); cw > w {
			w = cw
		}
	}
	return w
}
