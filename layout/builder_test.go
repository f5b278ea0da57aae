package layout

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/ByLCY/grimilgi/diary"
	"github.com/ByLCY/grimilgi/dsl"
	"github.com/ByLCY/grimilgi/grid"
)

const sampleDiary = `
diary v1 {
  meta {
    title: "봄 소풍"
    date: "2024-05-05"
    weather: sunny
    author: "${user.name}"
  }
  resources {
    font Body { src: "builtin:go-regular" }
    image Picture { src: "picnic.png" }
    color Ink #333
  }
  page A4 landscape margin 15mm {
    columns: 10
    rows: 6
    font: Body
    ink: Ink
    illustration: Picture
    body {
      "오늘은 엄마랑 소풍을 갔다."
    }
  }
}
`

func mustBuild(t *testing.T, src string, data any, opts BuildOptions) *Result {
	t.Helper()
	doc, err := dsl.ParseString(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	res, err := Build(doc, data, opts)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return res
}

func TestBuildSample(t *testing.T) {
	res := mustBuild(t, sampleDiary, map[string]any{"user": map[string]any{"name": "민지"}}, BuildOptions{})
	if len(res.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(res.Pages))
	}
	page := res.Pages[0]
	if page.Width != 297 {
		t.Fatalf("landscape A4 width should be 297, got %g", page.Width)
	}
	if page.Margin.Left != 15 || page.Margin.Bottom != 15 {
		t.Fatalf("unexpected margin: %+v", page.Margin)
	}
	if res.Meta.Title != "봄 소풍" || res.Meta.Author != "민지" {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
	if res.Grid.Columns != 10 || res.Grid.Rows != 6 {
		t.Fatalf("expected 10x6 grid, got %dx%d", res.Grid.Columns, res.Grid.Rows)
	}
	if len(page.Images) != 1 || page.Images[0].Path != "picnic.png" {
		t.Fatalf("illustration should resolve to resource src, got %+v", page.Images)
	}

	visible := 0
	for _, c := range res.Grid.Cells {
		if !c.Blank() {
			visible++
		}
	}
	if len(page.Glyphs) != visible {
		t.Fatalf("expected %d glyphs, got %d", visible, len(page.Glyphs))
	}
	ink := Color{R: 0x33, G: 0x33, B: 0x33}
	for _, g := range page.Glyphs {
		if g.Color != ink {
			t.Fatalf("glyph %q should use ink color, got %+v", g.Content, g.Color)
		}
		if g.Font != "Body" {
			t.Fatalf("glyph %q should use Body font, got %s", g.Content, g.Font)
		}
	}
	if page.Glyphs[0].Content != "오" || page.Glyphs[0].Column != 1 {
		t.Fatalf("first glyph should follow the reserved space, got %+v", page.Glyphs[0])
	}
}

func TestBuildGrowsPageToFitGrid(t *testing.T) {
	res := mustBuild(t, sampleDiary, nil, BuildOptions{Rows: 20})
	page := res.Pages[0]
	bottom := 0.0
	for _, l := range page.Lines {
		bottom = math.Max(bottom, math.Max(l.Y1, l.Y2))
	}
	if bottom+page.Margin.Bottom > page.Height+1e-9 {
		t.Fatalf("page height %g does not fit grid bottom %g", page.Height, bottom)
	}
	if page.Height <= 210 {
		t.Fatalf("page should grow beyond the landscape A4 height, got %g", page.Height)
	}
	if res.Grid.Rows != 20 {
		t.Fatalf("rows option should override document rows, got %d", res.Grid.Rows)
	}
}

func TestBuildSelectedWeatherIsRinged(t *testing.T) {
	res := mustBuild(t, sampleDiary, nil, BuildOptions{})
	rings := 0
	for _, c := range res.Pages[0].Circles {
		if c.StrokeColor == defaultAccent {
			rings++
		}
	}
	if rings != 1 {
		t.Fatalf("expected exactly one accent ring, got %d", rings)
	}
}

func TestBuildEntrySqueezedGlyphs(t *testing.T) {
	entry := diary.Entry{
		Title: "테스트",
		Date:  time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
		Body:  "가나다라마바사아자.",
	}
	res, err := BuildEntry(entry, BuildOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if res.Grid.Rows != grid.MinRows {
		t.Fatalf("short body should use %d rows, got %d", grid.MinRows, res.Grid.Rows)
	}
	glyphs := res.Pages[0].Glyphs
	if len(glyphs) != 10 {
		t.Fatalf("expected 9 primary glyphs plus one companion, got %d", len(glyphs))
	}
	last := glyphs[len(glyphs)-1]
	if last.Content != "." || last.Column != 9 || !last.Reduced || last.Anchor != grid.AnchorBottomRight {
		t.Fatalf("period should be squeezed into the last cell, got %+v", last)
	}
	full := glyphs[0]
	if math.Abs(last.FontSize-full.FontSize*ReducedScale) > 1e-9 {
		t.Fatalf("reduced glyph size %g, full %g", last.FontSize, full.FontSize)
	}
	if res.Meta.Subject != "2024년 5월 5일 일요일" {
		t.Fatalf("unexpected subject: %s", res.Meta.Subject)
	}
}

func TestBuildIllustrationOverride(t *testing.T) {
	res := mustBuild(t, sampleDiary, nil, BuildOptions{Illustration: "generated.png"})
	if len(res.Pages[0].Images) != 1 || res.Pages[0].Images[0].Path != "generated.png" {
		t.Fatalf("override should replace illustration, got %+v", res.Pages[0].Images)
	}
}

func TestBuildDefaultsWithoutResources(t *testing.T) {
	res := mustBuild(t, `diary v1 { page { body { "안녕" } } }`, nil, BuildOptions{})
	if _, ok := res.Resources.Fonts["Body"]; !ok {
		t.Fatalf("default Body font should be registered")
	}
	page := res.Pages[0]
	if page.Width != 210 || page.Height != 297 {
		t.Fatalf("default paper should be A4 portrait, got %gx%g", page.Width, page.Height)
	}
	if len(page.Images) != 0 {
		t.Fatalf("no illustration expected, got %+v", page.Images)
	}
}

func TestBuildRejectsUnknownPaper(t *testing.T) {
	doc, err := dsl.ParseString(`diary v1 { page Letter { body { "x" } } }`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := Build(doc, nil, BuildOptions{}); err == nil {
		t.Fatalf("expected error for unknown paper preset")
	}
}

func TestBuildRejectsOversizedGrid(t *testing.T) {
	doc, err := dsl.ParseString(`diary v1 { page A4 { rows: 2000000000000000000 body { "가나다" } } }`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := Build(doc, nil, BuildOptions{}); err == nil {
		t.Fatalf("expected error for oversized rows")
	}
	if _, err := BuildEntry(diary.Entry{Body: "가나다"}, BuildOptions{Rows: grid.MaxRows + 1}); err == nil {
		t.Fatalf("expected error for oversized rows option")
	}
	if _, err := BuildEntry(diary.Entry{Body: "가나다", Columns: grid.MaxColumns + 1}, BuildOptions{}); err == nil {
		t.Fatalf("expected error for oversized columns")
	}
}

func TestMarginFromValues(t *testing.T) {
	def := Margin{Top: 1, Right: 1, Bottom: 1, Left: 1}
	cases := []struct {
		in   []float64
		want Margin
	}{
		{nil, def},
		{[]float64{5}, Margin{5, 5, 5, 5}},
		{[]float64{5, 10}, Margin{5, 10, 5, 10}},
		{[]float64{5, 10, 15}, Margin{5, 10, 15, 10}},
		{[]float64{1, 2, 3, 4}, Margin{1, 2, 3, 4}},
	}
	for _, c := range cases {
		if got := marginFromValues(def, c.in); got != c.want {
			t.Fatalf("marginFromValues(%v) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("#e25240")
	if err != nil || c != (Color{R: 0xe2, G: 0x52, B: 0x40}) {
		t.Fatalf("unexpected color %+v err=%v", c, err)
	}
	if _, err := parseColor("#12"); err == nil {
		t.Fatalf("expected error for short color")
	}
}

func TestEncodeDebugJSON(t *testing.T) {
	res := mustBuild(t, sampleDiary, nil, BuildOptions{Debug: DebugOptions{CellFrames: true}})
	var buf bytes.Buffer
	if err := EncodeDebugJSON(&buf, res); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded struct {
		Grid struct {
			Columns int `json:"columns"`
			Cells   []struct {
				Primary struct {
					Class string `json:"class"`
				} `json:"primary"`
			} `json:"cells"`
		} `json:"grid"`
		Pages []struct {
			Glyphs []struct {
				Anchor string `json:"anchor"`
			} `json:"glyphs"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Grid.Columns != 10 || decoded.Grid.Cells[0].Primary.Class != "space" {
		t.Fatalf("unexpected grid json: %+v", decoded.Grid.Cells[0])
	}
	if decoded.Pages[0].Glyphs[0].Anchor != "center" {
		t.Fatalf("anchor should marshal as text, got %q", decoded.Pages[0].Glyphs[0].Anchor)
	}
}
