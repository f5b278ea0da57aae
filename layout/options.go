package layout

// BuildOptions 配置排版阶段，字段均可留空使用文档或默认值。
type BuildOptions struct {
	// Illustration 覆盖文档中的插图引用，例如刚生成的图片。
	Illustration string
	// Rows 固定书写区行数；0 表示沿用文档设置或按正文自动计算。
	Rows  int
	Debug DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	CellFrames bool // 为每个非空格子额外绘制浅色底，便于检查挤压与对齐
}
