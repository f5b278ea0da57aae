package diary

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ByLCY/grimilgi/binding"
	"github.com/ByLCY/grimilgi/dsl"
	"github.com/ByLCY/grimilgi/grid"
)

// FromDocument 从 .diary 文档提取日记内容，文本中的 ${...} 用 data 插值。
func FromDocument(doc *dsl.Document, data any) (Entry, error) {
	var entry Entry
	if doc == nil {
		return entry, fmt.Errorf("文档为空")
	}

	var page *dsl.PageSection
	for _, section := range doc.Sections {
		switch {
		case section.Meta != nil && section.Meta.Block != nil:
			if err := applyMeta(&entry, section.Meta.Block, data); err != nil {
				return entry, err
			}
		case section.Page != nil && page == nil:
			page = section.Page
		}
	}
	if page == nil {
		return entry, fmt.Errorf("文档中缺少 page 段落")
	}
	if err := applyPage(&entry, page.Block, data); err != nil {
		return entry, err
	}
	return entry, nil
}

func applyMeta(entry *Entry, block *dsl.Block, data any) error {
	for _, stmt := range block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		value := binding.Interpolate(stmt.Assignment.Value.Raw(), data)
		switch strings.ToLower(stmt.Assignment.Key) {
		case "title":
			entry.Title = value
		case "author":
			entry.Author = value
		case "date":
			if value == "" {
				continue
			}
			d, err := time.Parse(DateLayout, value)
			if err != nil {
				return fmt.Errorf("日期 %q 格式错误（应为 %s）: %w", value, DateLayout, err)
			}
			entry.Date = d
		case "weather":
			w, err := ParseWeather(value)
			if err != nil {
				return err
			}
			entry.Weather = w
		}
	}
	return nil
}

func applyPage(entry *Entry, block *dsl.Block, data any) error {
	if block == nil {
		return fmt.Errorf("page 段落缺少内容")
	}
	var body []string
	for _, stmt := range block.Statements {
		switch {
		case stmt.Assignment != nil:
			key := strings.ToLower(stmt.Assignment.Key)
			value := stmt.Assignment.Value.Raw()
			switch key {
			case "columns", "rows":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return fmt.Errorf("%s 必须是非负整数: %q", key, value)
				}
				limit := grid.MaxRows
				if key == "columns" {
					limit = grid.MaxColumns
				}
				if n > limit {
					return fmt.Errorf("%s 超出上限 %d: %d", key, limit, n)
				}
				if key == "columns" {
					entry.Columns = n
				} else {
					entry.Rows = n
				}
			case "font":
				entry.Font = value
			case "illustration":
				entry.Illustration = binding.Interpolate(value, data)
			}
		case stmt.Command != nil && stmt.Command.Name == "body":
			if stmt.Command.Block == nil {
				continue
			}
			for _, inner := range stmt.Command.Block.Statements {
				if inner.Text != nil {
					body = append(body, binding.Interpolate(string(inner.Text.Value), data))
				}
			}
		}
	}
	entry.Body = strings.Join(body, "\n")
	return nil
}
