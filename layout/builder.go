package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/grimilgi/diary"
	"github.com/ByLCY/grimilgi/dsl"
	"github.com/ByLCY/grimilgi/grid"
)

const (
	headerHeight      = 14.0
	titleHeight       = 12.0
	sectionGap        = 4.0
	illustrationRatio = 0.62
	labelSize         = 4.2
	labelWidth        = 14.0
	weatherIconR      = 3.0
	weatherIconGap    = 9.0
	frameWidth        = 0.4
	gridLineWidth     = 0.25

	// GlyphRatio 是字形字号相对格子边长的比例。
	GlyphRatio = 0.72
	// ReducedScale 是缩小绘制（引号、挤压的标点）的比例。
	ReducedScale = 0.55
)

var (
	defaultInk    = Color{R: 30, G: 30, B: 30}
	defaultGrid   = Color{R: 96, G: 168, B: 120}
	defaultAccent = Color{R: 226, G: 82, B: 64}
	debugFill     = Color{R: 255, G: 246, B: 214}
)

var pagePresets = map[string][2]float64{
	"A4": {210, 297},
	"A5": {148, 210},
	"B5": {176, 250},
}

// pageSetup 是页面尺寸与配色。
type pageSetup struct {
	width, height float64
	margin        Margin
	ink           Color
	gridColor     Color
	accent        Color
}

func defaultSetup() pageSetup {
	return pageSetup{
		width:     pagePresets["A4"][0],
		height:    pagePresets["A4"][1],
		margin:    Margin{Top: 15, Right: 15, Bottom: 15, Left: 15},
		ink:       defaultInk,
		gridColor: defaultGrid,
		accent:    defaultAccent,
	}
}

// Build 根据 .diary 文档生成图画日记页面的排版结果。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	entry, err := diary.FromDocument(doc, data)
	if err != nil {
		return nil, err
	}
	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	setup, err := resolveSetup(firstPage(doc), res)
	if err != nil {
		return nil, err
	}
	return compose(entry, res, setup, opts)
}

// BuildEntry 以默认纸张（A4）与内置字体排版一篇日记。
func BuildEntry(entry diary.Entry, opts BuildOptions) (*Result, error) {
	return compose(entry, defaultResources(), defaultSetup(), opts)
}

func compose(entry diary.Entry, res ResourceSet, setup pageSetup, opts BuildOptions) (*Result, error) {
	columns := entry.Columns
	if columns <= 0 {
		columns = grid.DefaultColumns
	}
	if columns > grid.MaxColumns {
		return nil, fmt.Errorf("每行格数超出上限 %d: %d", grid.MaxColumns, columns)
	}
	if opts.Rows > grid.MaxRows || entry.Rows > grid.MaxRows {
		return nil, fmt.Errorf("行数超出上限 %d", grid.MaxRows)
	}
	rows := opts.Rows
	if rows <= 0 {
		rows = entry.Rows
	}
	if rows <= 0 {
		rows = grid.CountRequiredRows(entry.Body, columns)
	}
	g := grid.BuildGrid(entry.Body, grid.ClampRows(rows), columns)

	m := setup.margin
	width := setup.width - m.Left - m.Right
	if width <= 0 {
		return nil, fmt.Errorf("页面边距过大，内容宽度为 %.1fmm", width)
	}

	font := resolveFontName(entry.Font, res)
	page := Page{Width: setup.width, Height: setup.height, Margin: m}

	illustration := entry.Illustration
	if opts.Illustration != "" {
		illustration = opts.Illustration
	}

	y := m.Top
	y = addHeader(&page, entry, font, m.Left, y, width, setup)
	y = addTitle(&page, entry.Title, font, m.Left, y, width, setup)
	y = addIllustration(&page, resolveImage(illustration, res), m.Left, y, width, setup)
	y = addGrid(&page, g, font, m.Left, y, width, setup, opts.Debug)

	// 书写区行数多时页面向下延伸，而不是截断。
	if need := y + m.Bottom; need > page.Height {
		page.Height = need
	}

	meta := DocumentMeta{
		Title:   entry.Title,
		Author:  entry.Author,
		Subject: entry.FormatDate(),
		Creator: "grimilgi",
	}
	if entry.Weather != diary.WeatherNone {
		meta.Keywords = []string{string(entry.Weather)}
	}

	return &Result{
		Pages:     []Page{page},
		Resources: res,
		Meta:      meta,
		Grid:      g,
	}, nil
}

// addHeader 绘制日期与天气一栏，返回下一段的起始 y。
func addHeader(p *Page, entry diary.Entry, font string, x, y, width float64, setup pageSetup) float64 {
	p.Rects = append(p.Rects, Rect{X: x, Y: y, Width: width, Height: headerHeight, StrokeColor: setup.ink, StrokeWidth: frameWidth})

	textY := y + (headerHeight-labelSize)/2
	date := entry.FormatDate()
	if date == "" {
		date = "년     월     일"
	}
	p.Texts = append(p.Texts, TextBox{
		Content: date, X: x + 3, Y: textY, Width: width / 2, Height: labelSize,
		Font: font, FontSize: labelSize, Color: setup.ink,
	})

	iconsWidth := float64(len(diary.Weathers)) * weatherIconGap
	iconsX := x + width - iconsWidth - 2
	p.Texts = append(p.Texts, TextBox{
		Content: "날씨", X: iconsX - labelWidth, Y: textY, Width: labelWidth - 2, Height: labelSize,
		Font: font, FontSize: labelSize, Color: setup.ink, Align: "right",
	})
	cy := y + headerHeight/2
	for i, w := range diary.Weathers {
		cx := iconsX + weatherIconGap*(float64(i)+0.5)
		addWeatherIcon(p, w, cx, cy, weatherIconR, setup.ink)
		if w == entry.Weather {
			p.Circles = append(p.Circles, Circle{CX: cx, CY: cy, R: weatherIconR * 1.45, StrokeColor: setup.accent, StrokeWidth: 0.5})
		}
	}
	return y + headerHeight
}

// addWeatherIcon 用线与圆画出天气图标，不依赖字体中的符号。
func addWeatherIcon(p *Page, w diary.Weather, cx, cy, r float64, col Color) {
	const stroke = 0.3
	cloud := func(ox, oy, s float64) {
		for _, c := range [][3]float64{{-0.45, 0.1, 0.38}, {0.05, -0.2, 0.5}, {0.5, 0.12, 0.35}} {
			p.Circles = append(p.Circles, Circle{CX: ox + c[0]*s, CY: oy + c[1]*s, R: c[2] * s, StrokeColor: col, StrokeWidth: stroke})
		}
	}
	switch w {
	case diary.WeatherSunny:
		p.Circles = append(p.Circles, Circle{CX: cx, CY: cy, R: r * 0.45, StrokeColor: col, StrokeWidth: stroke})
		for i := 0; i < 8; i++ {
			a := float64(i) * math.Pi / 4
			p.Lines = append(p.Lines, Line{
				X1: cx + math.Cos(a)*r*0.65, Y1: cy + math.Sin(a)*r*0.65,
				X2: cx + math.Cos(a)*r, Y2: cy + math.Sin(a)*r,
				Color: col, Width: stroke,
			})
		}
	case diary.WeatherCloudy:
		cloud(cx, cy, r)
	case diary.WeatherRainy:
		cloud(cx, cy-r*0.3, r*0.8)
		for i := -1; i <= 1; i++ {
			lx := cx + float64(i)*r*0.4
			p.Lines = append(p.Lines, Line{X1: lx, Y1: cy + r*0.35, X2: lx - r*0.15, Y2: cy + r*0.85, Color: col, Width: stroke})
		}
	case diary.WeatherSnowy:
		for i := 0; i < 3; i++ {
			a := float64(i) * math.Pi / 3
			dx, dy := math.Cos(a)*r*0.85, math.Sin(a)*r*0.85
			p.Lines = append(p.Lines, Line{X1: cx - dx, Y1: cy - dy, X2: cx + dx, Y2: cy + dy, Color: col, Width: stroke})
		}
	}
}

func addTitle(p *Page, title, font string, x, y, width float64, setup pageSetup) float64 {
	p.Rects = append(p.Rects, Rect{X: x, Y: y, Width: width, Height: titleHeight, StrokeColor: setup.ink, StrokeWidth: frameWidth})
	p.Lines = append(p.Lines, Line{X1: x + labelWidth, Y1: y, X2: x + labelWidth, Y2: y + titleHeight, Color: setup.ink, Width: frameWidth})
	textY := y + (titleHeight-labelSize)/2
	p.Texts = append(p.Texts,
		TextBox{Content: "제목", X: x, Y: textY, Width: labelWidth, Height: labelSize, Font: font, FontSize: labelSize, Color: setup.ink, Align: "center"},
		TextBox{Content: title, X: x + labelWidth + 3, Y: textY, Width: width - labelWidth - 6, Height: labelSize, Font: font, FontSize: labelSize, Color: setup.ink},
	)
	return y + titleHeight + sectionGap
}

func addIllustration(p *Page, src string, x, y, width float64, setup pageSetup) float64 {
	height := width * illustrationRatio
	p.Rects = append(p.Rects, Rect{X: x, Y: y, Width: width, Height: height, StrokeColor: setup.ink, StrokeWidth: frameWidth})
	if src != "" {
		const inset = 1.0
		p.Images = append(p.Images, ImageBox{Path: src, X: x + inset, Y: y + inset, Width: width - 2*inset, Height: height - 2*inset})
	}
	return y + height + sectionGap
}

// addGrid 绘制原稿纸网格并把每个格子的字形按对齐提示放入，返回网格底部 y。
func addGrid(p *Page, g grid.Grid, font string, x, y, width float64, setup pageSetup, debug DebugOptions) float64 {
	cell := width / float64(g.Columns)
	height := cell * float64(g.Rows)

	for i, c := range g.Cells {
		row, col := i/g.Columns, i%g.Columns
		cx, cy := x+float64(col)*cell, y+float64(row)*cell
		if c.Blank() {
			continue
		}
		if debug.CellFrames {
			fill := debugFill
			p.Rects = append(p.Rects, Rect{X: cx, Y: cy, Width: cell, Height: cell, StrokeColor: fill, FillColor: &fill})
		}
		hint := grid.Align(c)
		if c.Primary.Text != "" && !c.Primary.IsSpace() {
			p.Glyphs = append(p.Glyphs, glyphBox(c.Primary.Text, hint.Primary, row, col, cx, cy, cell, font, setup.ink))
		}
		if c.Companion != nil && hint.Companion != nil {
			p.Glyphs = append(p.Glyphs, glyphBox(c.Companion.Text, *hint.Companion, row, col, cx, cy, cell, font, setup.ink))
		}
	}

	for r := 0; r <= g.Rows; r++ {
		ly := y + float64(r)*cell
		p.Lines = append(p.Lines, Line{X1: x, Y1: ly, X2: x + width, Y2: ly, Color: setup.gridColor, Width: gridLineWidth})
	}
	for c := 0; c <= g.Columns; c++ {
		lx := x + float64(c)*cell
		p.Lines = append(p.Lines, Line{X1: lx, Y1: y, X2: lx, Y2: y + height, Color: setup.gridColor, Width: gridLineWidth})
	}
	p.Rects = append(p.Rects, Rect{X: x, Y: y, Width: width, Height: height, StrokeColor: setup.gridColor, StrokeWidth: frameWidth})
	return y + height
}

func glyphBox(content string, placement grid.Placement, row, col int, x, y, size float64, font string, ink Color) GlyphBox {
	fontSize := size * GlyphRatio
	if placement.Reduced {
		fontSize *= ReducedScale
	}
	return GlyphBox{
		Content:  content,
		Row:      row,
		Column:   col,
		X:        x,
		Y:        y,
		Size:     size,
		FontSize: fontSize,
		Font:     font,
		Color:    ink,
		Anchor:   placement.Anchor,
		Reduced:  placement.Reduced,
	}
}

func defaultResources() ResourceSet {
	return ResourceSet{
		Fonts: map[string]FontResource{
			"Body": {Name: "Body", Src: "builtin:go-regular", Family: "Body"},
		},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
	}
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
	}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil || len(stmt.Command.Args) == 0 {
				continue
			}
			cmd := stmt.Command
			name := cmd.Args[0].Value
			switch cmd.Name {
			case "font":
				font := FontResource{Name: name, Family: name}
				for key, value := range blockAssignments(cmd.Block) {
					switch key {
					case "src":
						font.Src = value
					case "style":
						font.Style = value
					case "fallback":
						font.Fallback = value
					}
				}
				if font.Src == "" {
					return res, fmt.Errorf("字体 %s 缺少 src", name)
				}
				res.Fonts[name] = font
			case "image":
				src := blockAssignments(cmd.Block)["src"]
				if src == "" {
					return res, fmt.Errorf("图片 %s 缺少 src", name)
				}
				res.Images[name] = ImageResource{Name: name, Src: src}
			case "color":
				if len(cmd.Args) < 2 {
					return res, fmt.Errorf("颜色 %s 缺少取值", name)
				}
				c, err := parseColor(cmd.Args[1].Value)
				if err != nil {
					return res, err
				}
				res.Colors[name] = c
			}
		}
	}

	if len(res.Fonts) == 0 {
		res.Fonts = defaultResources().Fonts
	}
	return res, nil
}

func blockAssignments(block *dsl.Block) map[string]string {
	out := map[string]string{}
	if block == nil {
		return out
	}
	for _, stmt := range block.Statements {
		if stmt.Assignment != nil {
			out[strings.ToLower(stmt.Assignment.Key)] = stmt.Assignment.Value.Raw()
		}
	}
	return out
}

func resolveSetup(section *dsl.PageSection, res ResourceSet) (pageSetup, error) {
	setup := defaultSetup()
	if section == nil {
		return setup, nil
	}
	values := make([]string, 0, len(section.Params))
	for _, p := range section.Params {
		values = append(values, p.Value)
	}

	landscape := false
	for i := 0; i < len(values); i++ {
		v := values[i]
		switch strings.ToLower(v) {
		case "landscape":
			landscape = true
		case "portrait":
			landscape = false
		case "margin":
			var lengths []float64
			for j := i + 1; j < len(values) && len(lengths) < 4; j++ {
				l, ok := ParseLength(values[j])
				if !ok {
					break
				}
				lengths = append(lengths, l.ToMM())
			}
			setup.margin = marginFromValues(setup.margin, lengths)
			i += len(lengths)
		default:
			size, ok := pagePresets[strings.ToUpper(v)]
			if !ok {
				return setup, fmt.Errorf("暂不支持的纸张参数：%s", v)
			}
			setup.width, setup.height = size[0], size[1]
		}
	}
	if landscape {
		setup.width, setup.height = setup.height, setup.width
	}

	for key, value := range blockAssignments(section.Block) {
		switch key {
		case "ink":
			setup.ink = resolveColor(value, res, defaultInk)
		case "grid":
			setup.gridColor = resolveColor(value, res, defaultGrid)
		case "accent":
			setup.accent = resolveColor(value, res, defaultAccent)
		}
	}
	return setup, nil
}

// marginFromValues 采用 CSS 语义：1 个值四边相同；2 个值为上下、左右；3 个值为上、左右、下；4 个值为上右下左。
func marginFromValues(def Margin, v []float64) Margin {
	switch len(v) {
	case 1:
		return Margin{Top: v[0], Right: v[0], Bottom: v[0], Left: v[0]}
	case 2:
		return Margin{Top: v[0], Right: v[1], Bottom: v[0], Left: v[1]}
	case 3:
		return Margin{Top: v[0], Right: v[1], Bottom: v[2], Left: v[1]}
	case 4:
		return Margin{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}
	default:
		return def
	}
}

func firstPage(doc *dsl.Document) *dsl.PageSection {
	for _, section := range doc.Sections {
		if section.Page != nil {
			return section.Page
		}
	}
	return nil
}

func resolveFontName(name string, res ResourceSet) string {
	if _, ok := res.Fonts[name]; ok {
		return name
	}
	if _, ok := res.Fonts["Body"]; ok {
		return "Body"
	}
	for n := range res.Fonts {
		return n
	}
	return ""
}

// resolveImage 将资源名换成其 src，否则原样作为路径、URL 或 data: URI 使用。
func resolveImage(ref string, res ResourceSet) string {
	if img, ok := res.Images[ref]; ok {
		return img.Src
	}
	return ref
}

func resolveColor(value string, res ResourceSet, fallback Color) Color {
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return fallback
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(value[0:1], 2)),
			G: mustHex(strings.Repeat(value[1:2], 2)),
			B: mustHex(strings.Repeat(value[2:3], 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}
