package canvasrenderer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/grimilgi/fonts"
	"github.com/ByLCY/grimilgi/grid"
	"github.com/ByLCY/grimilgi/layout"
	"github.com/ByLCY/grimilgi/renderer"
)

const (
	defaultStrokeWidth = 0.2
	defaultDPMM        = 8.0
	// glyphPadding 是角落锚点字形与格线之间的留白，按格子边长计。
	glyphPadding = 0.08
)

// Renderer draws layout results via github.com/tdewolff/canvas.
type Renderer struct {
	baseDir string
	format  string
	dpmm    float64

	// injected resources
	fontBlobs  map[string][]byte // by unique name
	imageBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // built-in fonts accessible via built-in:<name>
	Images  map[string]Resource // built-in images accessible via built-in:<name>
	// Format 为 "pdf"（默认）或 "png"。
	Format string
	// DPMM 是 PNG 输出的每毫米像素数，<=0 时取 8。
	DPMM float64
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a PDF renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		format:       strings.ToLower(opts.Format),
		dpmm:         opts.DPMM,
		fontBlobs:    ingest(opts.Fonts),
		imageBlobs:   ingest(opts.Images),
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	if r.format == "" {
		r.format = "pdf"
	}
	if r.dpmm <= 0 {
		r.dpmm = defaultDPMM
	}
	return r
}

func ingest(resources map[string]Resource) map[string][]byte {
	out := map[string][]byte{}
	for name, res := range resources {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			out[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // 读取失败在真正使用时报错
			if len(data) > 0 {
				out[name] = data
			}
		}
	}
	return out
}

// Render 按配置的格式输出排版结果。PNG 只输出第一页。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	switch r.format {
	case "pdf":
		return r.renderPDF(result)
	case "png":
		return r.renderPNG(result)
	default:
		return nil, fmt.Errorf("不支持的输出格式：%s", r.format)
	}
}

func (r *Renderer) renderPDF(result *layout.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c, err := r.drawCanvas(page, result.Resources)
		if err != nil {
			return nil, err
		}
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) renderPNG(result *layout.Result) ([]byte, error) {
	c, err := r.drawCanvas(result.Pages[0], result.Resources)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.Write(&buf, renderers.PNG(canvas.DPMM(r.dpmm))); err != nil {
		return nil, fmt.Errorf("写入 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCanvas(page layout.Page, resources layout.ResourceSet) (*canvas.Canvas, error) {
	c := canvas.New(page.Width, page.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与排版保持左上角为原点

	ctx.SetFillColor(canvas.White)
	ctx.SetStrokeColor(color.RGBA{})
	ctx.DrawPath(0, 0, canvas.Rectangle(page.Width, page.Height))

	if err := r.drawPage(ctx, page, resources); err != nil {
		return nil, err
	}
	return c, nil
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page, resources layout.ResourceSet) error {
	// 形状作为背景先画，其后是图片、文本与格子里的字形
	drawRects(ctx, page.Rects)
	drawLines(ctx, page.Lines)
	drawCircles(ctx, page.Circles)

	if err := r.drawImages(ctx, page.Images); err != nil {
		return err
	}
	for _, tb := range page.Texts {
		if err := r.drawTextBox(ctx, tb, resolveFontResource(tb.Font, resources.Fonts)); err != nil {
			return err
		}
	}
	for _, g := range page.Glyphs {
		if err := r.drawGlyph(ctx, g, resolveFontResource(g.Font, resources.Fonts)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox, fontRes layout.FontResource) error {
	if tb.Content == "" {
		return nil
	}
	// TextBox 的坐标/字号均为 mm；创建字体面需要 pt，这里做一次 mm→pt。
	face, err := r.fontFace(fontRes, toPt(tb.FontSize), tb.Color)
	if err != nil {
		return err
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(tb.Align) {
	case "center":
		textAlign = canvas.Center
		anchorX = tb.X + tb.Width/2
	case "right", "end":
		textAlign = canvas.Right
		anchorX = tb.X + tb.Width
	default:
		textAlign = canvas.Left
		anchorX = tb.X
	}

	metrics := face.Metrics()
	ctx.DrawText(anchorX, tb.Y+metrics.Ascent, canvas.NewTextLine(face, tb.Content, textAlign))
	return nil
}

// drawGlyph 把字形放到所在格子的锚点位置。
func (r *Renderer) drawGlyph(ctx *canvas.Context, g layout.GlyphBox, fontRes layout.FontResource) error {
	face, err := r.fontFace(fontRes, toPt(g.FontSize), g.Color)
	if err != nil {
		return err
	}
	metrics := face.Metrics()
	x, baseline, align := glyphOrigin(g.Anchor, g.X, g.Y, g.Size, metrics.Ascent, metrics.Descent)
	ctx.DrawText(x, baseline, canvas.NewTextLine(face, g.Content, align))
	return nil
}

// glyphOrigin 返回字形的绘制起点（x 与基线 y）以及水平对齐方式。
// ascent/descent 均为正值（mm）。
func glyphOrigin(anchor grid.Anchor, x, y, size, ascent, descent float64) (float64, float64, canvas.TextAlign) {
	pad := size * glyphPadding
	top := y + pad + ascent
	bottom := y + size - pad - descent
	switch anchor {
	case grid.AnchorBottomLeft:
		return x + pad, bottom, canvas.Left
	case grid.AnchorBottomRight:
		return x + size - pad, bottom, canvas.Right
	case grid.AnchorTopLeft:
		return x + pad, top, canvas.Left
	case grid.AnchorTopRight:
		return x + size - pad, top, canvas.Right
	default:
		return x + size/2, y + size/2 + (ascent-descent)/2, canvas.Center
	}
}

func (r *Renderer) drawImages(ctx *canvas.Context, images []layout.ImageBox) error {
	for _, img := range images {
		if img.Path == "" {
			continue
		}
		data, err := r.loadImage(img.Path)
		if err != nil {
			return err
		}
		bounds := data.Bounds()
		if bounds.Dx() == 0 || bounds.Dy() == 0 {
			continue
		}
		x, y, scale := fitImage(img, bounds.Dx(), bounds.Dy())
		ctx.DrawImage(x, y, data, canvas.DPMM(1/scale))
	}
	return nil
}

// fitImage 按比例缩放图片并在方框内居中，返回左上角与每像素的毫米数。
func fitImage(box layout.ImageBox, pxW, pxH int) (float64, float64, float64) {
	scale := math.Min(box.Width/float64(pxW), box.Height/float64(pxH))
	w, h := float64(pxW)*scale, float64(pxH)*scale
	return box.X + (box.Width-w)/2, box.Y + (box.Height-h)/2, scale
}

func (r *Renderer) loadImage(src string) (image.Image, error) {
	var raw []byte
	switch {
	case strings.HasPrefix(src, "built-in:"):
		name := strings.TrimPrefix(src, "built-in:")
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
		}
		raw = blob
	case strings.HasPrefix(src, "data:"):
		blob, err := decodeDataURI(src)
		if err != nil {
			return nil, err
		}
		raw = blob
	default:
		path, err := r.resolvePath(src)
		if err != nil {
			return nil, err
		}
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", shorten(src), err)
	}
	return img, nil
}

// decodeDataURI 解析 data:image/png;base64,... 形式的图片。
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data URI 缺少数据部分")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("仅支持 base64 编码的 data URI：%s", header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data URI 解码失败: %w", err)
	}
	return data, nil
}

func (r *Renderer) resolvePath(src string) (string, error) {
	if filepath.IsAbs(src) {
		return src, nil
	}
	if r.baseDir == "" {
		return "", fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in: 或 data:）", src)
	}
	return filepath.Join(r.baseDir, src), nil
}

func shorten(s string) string {
	if len(s) > 48 {
		return s[:48] + "…"
	}
	return s
}

// drawLines 绘制直线列表（毫米单位）
func drawLines(ctx *canvas.Context, lines []layout.Line) {
	for _, ln := range lines {
		w := ln.Width
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetFillColor(color.RGBA{})
		ctx.SetStrokeColor(colorFromLayout(ln.Color))
		ctx.SetStrokeWidth(w)
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
		ctx.DrawPath(ln.X1, ln.Y1, p)
	}
}

func drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		w := rc.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetFillColor(fillColor(rc.FillColor))
		ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
		ctx.SetStrokeWidth(w)
		ctx.DrawPath(rc.X, rc.Y, canvas.Rectangle(rc.Width, rc.Height))
	}
}

func drawCircles(ctx *canvas.Context, circles []layout.Circle) {
	for _, c := range circles {
		w := c.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetFillColor(fillColor(c.FillColor))
		ctx.SetStrokeColor(colorFromLayout(c.StrokeColor))
		ctx.SetStrokeWidth(w)
		ctx.DrawPath(c.CX, c.CY, canvas.Circle(c.R))
	}
}

func fillColor(c *layout.Color) color.Color {
	if c == nil {
		return color.RGBA{}
	}
	return colorFromLayout(*c)
}

func (r *Renderer) fontFace(font layout.FontResource, size float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbErr := r.fallback(font.Fallback)
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: canvas.FontRegular}
		return fallback, canvas.FontRegular, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(font layout.FontResource) ([]byte, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	src := font.Src
	switch {
	case strings.HasPrefix(src, "built-in:"):
		name := strings.TrimPrefix(src, "built-in:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	case strings.HasPrefix(src, "builtin:"):
		return fonts.Load(src)
	}
	path, err := r.resolvePath(src)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// fallback 返回回退字体：优先使用字体资源声明的 fallback，否则使用内置 go-regular。
func (r *Renderer) fallback(name string) (*canvas.FontFamily, error) {
	if name == "" && r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := r.fallbackBytes(name)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("grimilgi-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	if name == "" {
		r.fallbackFamily = family
	}
	return family, nil
}

func (r *Renderer) fallbackBytes(name string) ([]byte, error) {
	if blob, ok := r.fontBlobs[name]; ok {
		return blob, nil
	}
	if name != "" {
		if data, err := fonts.Load(name); err == nil {
			return data, nil
		}
	}
	return fonts.Load(fonts.Fallback)
}

func resolveFontResource(name string, available map[string]layout.FontResource) layout.FontResource {
	if font, ok := available[name]; ok {
		return font
	}
	if font, ok := available["Body"]; ok {
		return font
	}
	for _, font := range available {
		return font
	}
	return layout.FontResource{Name: "Body", Src: "builtin:" + fonts.Fallback}
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s|%s", font.Name, font.Src, font.Style, font.Fallback)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
