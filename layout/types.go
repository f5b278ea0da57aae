package layout

import "github.com/ByLCY/grimilgi/grid"

// 该文件定义页面排版结果与资源描述，供排版、渲染与调试 JSON 共用。

// Result 保存排版后的页面、资源以及正文网格。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
	Grid      grid.Grid    `json:"grid"`
}

// ResourceSet 记录文档声明的字体、颜色与图片。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
}

// FontResource 描述字体资源，src 可以是文件路径、built-in:* 注入资源或 builtin:go-regular 这类内置字体。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style"`
	Family   string `json:"family"`
	Fallback string `json:"fallback"`
}

// ImageResource 记录图片资源。
type ImageResource struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Page 记录页面尺寸、边距与最终可以直接渲染的元素，坐标单位均为 mm，原点在左上角。
type Page struct {
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Margin  Margin     `json:"margin"`
	Texts   []TextBox  `json:"texts"`
	Images  []ImageBox `json:"images"`
	Glyphs  []GlyphBox `json:"glyphs"`
	Lines   []Line     `json:"lines,omitempty"`
	Rects   []Rect     `json:"rects,omitempty"`
	Circles []Circle   `json:"circles,omitempty"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// TextBox 是单行文本，例如日期、标题。
type TextBox struct {
	Content  string  `json:"content"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize"` // mm
	Color    Color   `json:"color"`
	Align    string  `json:"align,omitempty"` // left/center/right（默认 left）
}

// GlyphBox 是原稿纸一格中的一个字形。X/Y/Size 描述所在格子，渲染器按 Anchor 定位字形。
type GlyphBox struct {
	Content  string      `json:"content"`
	Row      int         `json:"row"`
	Column   int         `json:"column"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Size     float64     `json:"size"`
	FontSize float64     `json:"fontSize"` // mm，已按 Reduced 缩放
	Font     string      `json:"font"`
	Color    Color       `json:"color"`
	Anchor   grid.Anchor `json:"anchor"`
	Reduced  bool        `json:"reduced,omitempty"`
}

// ImageBox 用于描述图片位置与尺寸，图片按比例缩放后居中放入方框。
type ImageBox struct {
	Path   string  `json:"path"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Line 表示一条线段。
type Line struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color Color   `json:"color"`
	Width float64 `json:"width"` // 线宽（mm），<=0 时由渲染器给默认值
}

// Rect 表示一个矩形（不包含圆角）。
type Rect struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`         // mm
	FillColor   *Color  `json:"fillColor,omitempty"` // 为空表示不填充
}

// Circle 表示一个圆。
type Circle struct {
	CX          float64 `json:"cx"`
	CY          float64 `json:"cy"`
	R           float64 `json:"r"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"` // mm
	FillColor   *Color  `json:"fillColor,omitempty"`
}

// DocumentMeta 保存导出文件的元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
