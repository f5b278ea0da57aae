package grid

import (
	"strings"
	"unicode"
)

// Class 描述一个字形在排版规则中的类别。
type Class int

const (
	ClassOther         Class = iota
	ClassSpace               // 空白
	ClassSentencePunct       // . , ! ?
	ClassOpenQuote           // “ ‘ 以及按出现次序判定为开引号的 " '
	ClassCloseQuote          // ” ’ 以及按出现次序判定为闭引号的 " '
	ClassCloseParen          // ) ）
)

func (c Class) String() string {
	switch c {
	case ClassSpace:
		return "space"
	case ClassSentencePunct:
		return "punct"
	case ClassOpenQuote:
		return "open-quote"
	case ClassCloseQuote:
		return "close-quote"
	case ClassCloseParen:
		return "close-paren"
	default:
		return "other"
	}
}

// MarshalText 让调试 JSON 输出可读的类别名。
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Glyph 是规范化文本中的一个字素簇（grapheme cluster）及其类别。
type Glyph struct {
	Text  string `json:"text"`
	Class Class  `json:"class"`
}

// ForbiddenAtLineStart 报告该字形是否不允许出现在行首（句读、闭引号、闭括号）。
func (g Glyph) ForbiddenAtLineStart() bool {
	switch g.Class {
	case ClassSentencePunct, ClassCloseQuote, ClassCloseParen:
		return true
	default:
		return false
	}
}

// IsSpace reports whether the glyph is whitespace.
func (g Glyph) IsSpace() bool { return g.Class == ClassSpace }

// Text 是规范化后的字形序列，排版时从左到右只消费一次。
type Text []Glyph

// String 将字形序列还原为字符串。
func (t Text) String() string {
	var b strings.Builder
	for _, g := range t {
		b.WriteString(g.Text)
	}
	return b.String()
}

const (
	quoteNone = iota
	quoteDouble
	quoteSingle
)

// staticClass 对不依赖上下文的字形做分类；ASCII 引号返回 quoteDouble/quoteSingle，
// 其开闭方向由 Normalize 按出现次序决定。
func staticClass(cluster string) (Class, int) {
	if cluster == "" {
		return ClassOther, quoteNone
	}
	if isSpaceCluster(cluster) {
		return ClassSpace, quoteNone
	}
	switch cluster {
	case ".", ",", "!", "?":
		return ClassSentencePunct, quoteNone
	case "“", "‘":
		return ClassOpenQuote, quoteNone
	case "”", "’":
		return ClassCloseQuote, quoteNone
	case ")", "）":
		return ClassCloseParen, quoteNone
	case `"`:
		return ClassOther, quoteDouble
	case "'":
		return ClassOther, quoteSingle
	}
	return ClassOther, quoteNone
}

func isSpaceCluster(cluster string) bool {
	for _, r := range cluster {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return cluster != ""
}

func isLetterCluster(cluster string) bool {
	for _, r := range cluster {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	return false
}
