package grid

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// reservedSpace 是规范化时在文本最前面插入的缩进空格，保证首格永远为空。
var reservedSpace = Glyph{Text: " ", Class: ClassSpace}

var lineBreaks = strings.NewReplacer(
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
	"\u2028", " ",
	"\u2029", " ",
)

// Normalize 将原始日记文本转换为单行字形序列：
//  1. 所有换行替换为一个空格；
//  2. 删除句读（. , ! ?）之后的空白；
//  3. 删除开引号之后、闭引号之前的空白；
//  4. 在最前面保留一个缩进空格（输入自带的前导空白并入这个空格）。
//
// 文本先做 NFC 组合并按字素簇切分，分解形式的韩文字母会合成为一个音节占一格。
func Normalize(raw string) Text {
	s := lineBreaks.Replace(norm.NFC.String(raw))
	clusters := splitClusters(s)
	glyphs := classify(clusters)

	out := make(Text, 0, len(glyphs)+1)
	out = append(out, reservedSpace)
	for _, g := range glyphs {
		switch g.Class {
		case ClassSpace:
			// 前导空白并入保留空格
			if len(out) == 1 {
				continue
			}
			switch out[len(out)-1].Class {
			case ClassSentencePunct, ClassOpenQuote:
				continue
			}
		case ClassCloseQuote:
			for len(out) > 1 && out[len(out)-1].IsSpace() {
				out = out[:len(out)-1]
			}
		}
		out = append(out, g)
	}
	return out
}

func splitClusters(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// classify 为每个字素簇确定类别。ASCII 引号没有方向，按同类引号的出现次序交替判定开闭；
// 夹在两个字母之间的 ' 视为撇号。
func classify(clusters []string) []Glyph {
	out := make([]Glyph, len(clusters))
	var doubleOpen, singleOpen bool
	for i, c := range clusters {
		class, quote := staticClass(c)
		switch quote {
		case quoteDouble:
			class, doubleOpen = toggleQuote(doubleOpen)
		case quoteSingle:
			if i > 0 && i+1 < len(clusters) && isLetterCluster(clusters[i-1]) && isLetterCluster(clusters[i+1]) {
				class = ClassOther
				break
			}
			class, singleOpen = toggleQuote(singleOpen)
		}
		out[i] = Glyph{Text: c, Class: class}
	}
	return out
}

func toggleQuote(open bool) (Class, bool) {
	if open {
		return ClassCloseQuote, false
	}
	return ClassOpenQuote, true
}
