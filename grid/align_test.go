package grid

import "testing"

func TestAlign(t *testing.T) {
	glyph := func(text string, class Class) Glyph { return Glyph{Text: text, Class: class} }
	companion := func(text string, class Class) *Glyph {
		g := glyph(text, class)
		return &g
	}

	cases := []struct {
		name      string
		cell      Cell
		primary   Placement
		companion *Placement
	}{
		{"plain", Cell{Primary: glyph("가", ClassOther)}, Placement{Anchor: AnchorCenter}, nil},
		{"period", Cell{Primary: glyph(".", ClassSentencePunct)}, Placement{Anchor: AnchorBottomLeft}, nil},
		{"comma", Cell{Primary: glyph(",", ClassSentencePunct)}, Placement{Anchor: AnchorBottomLeft}, nil},
		{"question", Cell{Primary: glyph("?", ClassSentencePunct)}, Placement{Anchor: AnchorCenter}, nil},
		{"open quote", Cell{Primary: glyph("“", ClassOpenQuote)}, Placement{Anchor: AnchorTopRight, Reduced: true}, nil},
		{"close quote", Cell{Primary: glyph("”", ClassCloseQuote)}, Placement{Anchor: AnchorTopLeft, Reduced: true}, nil},
		{
			"squeezed period",
			Cell{Primary: glyph("다", ClassOther), Companion: companion(".", ClassSentencePunct)},
			Placement{Anchor: AnchorCenter},
			&Placement{Anchor: AnchorBottomRight, Reduced: true},
		},
		{
			"period with companion is not bottom-left",
			Cell{Primary: glyph(".", ClassSentencePunct), Companion: companion(")", ClassCloseParen)},
			Placement{Anchor: AnchorCenter},
			&Placement{Anchor: AnchorBottomRight, Reduced: true},
		},
		{
			"close quote after punct",
			Cell{Primary: glyph(".", ClassSentencePunct), Companion: companion("”", ClassCloseQuote)},
			Placement{Anchor: AnchorCenter},
			&Placement{Anchor: AnchorTopRight, Reduced: true},
		},
		{
			"close quote after letter",
			Cell{Primary: glyph("요", ClassOther), Companion: companion("”", ClassCloseQuote)},
			Placement{Anchor: AnchorCenter},
			&Placement{Anchor: AnchorBottomRight, Reduced: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hint := Align(tc.cell)
			if hint.Primary != tc.primary {
				t.Fatalf("primary = %+v，预期 %+v", hint.Primary, tc.primary)
			}
			switch {
			case tc.companion == nil && hint.Companion != nil:
				t.Fatalf("不应有 companion 提示: %+v", *hint.Companion)
			case tc.companion != nil && hint.Companion == nil:
				t.Fatalf("缺少 companion 提示")
			case tc.companion != nil && *hint.Companion != *tc.companion:
				t.Fatalf("companion = %+v，预期 %+v", *hint.Companion, *tc.companion)
			}
		})
	}
}

func TestAlignOnBuiltGrid(t *testing.T) {
	g := BuildGrid("12345678.”다음", MinRows, DefaultColumns)
	hint := Align(g.Cells[9])
	if hint.Companion == nil || hint.Companion.Anchor != AnchorTopRight {
		t.Fatalf("句读后的闭引号应靠右上: %+v", hint)
	}
}
