package renderer

import (
	"path/filepath"
	"strings"

	"github.com/ByLCY/grimilgi/layout"
)

// Renderer 将排版结果输出为最终文件（PDF 或 PNG）。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// Format 根据输出文件扩展名选择导出格式，未知扩展名按 PDF 处理。
func Format(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "png"
	}
	return "pdf"
}
