package grid

// Anchor 是字形在格子内的对齐位置。
type Anchor int

const (
	AnchorCenter Anchor = iota
	AnchorBottomLeft
	AnchorBottomRight
	AnchorTopLeft
	AnchorTopRight
)

func (a Anchor) String() string {
	switch a {
	case AnchorBottomLeft:
		return "bottom-left"
	case AnchorBottomRight:
		return "bottom-right"
	case AnchorTopLeft:
		return "top-left"
	case AnchorTopRight:
		return "top-right"
	default:
		return "center"
	}
}

func (a Anchor) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Placement 描述一个字形的锚点以及是否缩小绘制。
type Placement struct {
	Anchor  Anchor `json:"anchor"`
	Reduced bool   `json:"reduced,omitempty"`
}

// AlignmentHint 是渲染器使用的呈现提示，排版引擎本身不涉及像素坐标。
type AlignmentHint struct {
	Primary   Placement  `json:"primary"`
	Companion *Placement `json:"companion,omitempty"`
}

// Align 根据格子内容给出对齐提示：
// 单独的 . , 靠左下；开引号靠右上、闭引号靠左上并缩小；
// 伴随字形缩小靠右下，句读后的闭引号伴随字形例外，靠右上。
func Align(c Cell) AlignmentHint {
	var hint AlignmentHint
	switch {
	case c.Companion == nil && (c.Primary.Text == "." || c.Primary.Text == ","):
		hint.Primary = Placement{Anchor: AnchorBottomLeft}
	case c.Primary.Class == ClassOpenQuote:
		hint.Primary = Placement{Anchor: AnchorTopRight, Reduced: true}
	case c.Primary.Class == ClassCloseQuote:
		hint.Primary = Placement{Anchor: AnchorTopLeft, Reduced: true}
	default:
		hint.Primary = Placement{Anchor: AnchorCenter}
	}

	if c.Companion != nil {
		p := Placement{Anchor: AnchorBottomRight, Reduced: true}
		if c.Companion.Class == ClassCloseQuote && c.Primary.Class == ClassSentencePunct {
			p.Anchor = AnchorTopRight
		}
		hint.Companion = &p
	}
	return hint
}
