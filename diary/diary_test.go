package diary

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ByLCY/grimilgi/dsl"
	"github.com/ByLCY/grimilgi/grid"
)

const sampleDiary = `diary v1 {
  meta {
    title: "${child.name}의 소풍"
    date: "2024-05-05"
    weather: rainy
  }
  page A4 {
    columns: 12
    rows: 7
    font: Body
    illustration: "pictures/${child.name}.png"
    body {
      "오늘은 소풍을 갔다."
      "비가 왔다."
    }
  }
}`

func TestFromDocument(t *testing.T) {
	doc, err := dsl.ParseString(sampleDiary)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	var data any
	if err := json.Unmarshal([]byte(`{"child":{"name":"민지"}}`), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	e, err := FromDocument(doc, data)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if e.Title != "민지의 소풍" {
		t.Fatalf("标题插值失败: %q", e.Title)
	}
	if want := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC); !e.Date.Equal(want) {
		t.Fatalf("日期解析错误: %v", e.Date)
	}
	if e.Weather != WeatherRainy {
		t.Fatalf("天气应为 rainy，实际 %q", e.Weather)
	}
	if e.Columns != 12 || e.Rows != 7 || e.Font != "Body" {
		t.Fatalf("page 设置解析错误: %+v", e)
	}
	if e.Illustration != "pictures/민지.png" {
		t.Fatalf("插图路径插值失败: %q", e.Illustration)
	}
	if e.Body != "오늘은 소풍을 갔다.\n비가 왔다." {
		t.Fatalf("正文拼接错误: %q", e.Body)
	}
	if got := e.FormatDate(); got != "2024년 5월 5일 일요일" {
		t.Fatalf("日期格式错误: %q", got)
	}
}

func TestFromDocumentErrors(t *testing.T) {
	cases := map[string]string{
		"no page":     `diary v1 { meta { title: "x" } }`,
		"bad date":    `diary v1 { meta { date: "5월 5일" } page { body { "a" } } }`,
		"bad weather": `diary v1 { meta { weather: foggy } page { body { "a" } } }`,
		"bad rows":    `diary v1 { page { rows: abc } }`,
		"huge rows":   `diary v1 { page A4 { rows: 2000000000000000000 body { "가나다" } } }`,
		"many rows":   `diary v1 { page { rows: 1001 } }`,
		"wide page":   `diary v1 { page { columns: 101 } }`,
	}
	for name, src := range cases {
		doc, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("%s: 解析失败: %v", name, err)
		}
		if _, err := FromDocument(doc, nil); err == nil {
			t.Fatalf("%s: 应返回错误", name)
		}
	}
}

func TestParseWeather(t *testing.T) {
	for in, want := range map[string]Weather{"": WeatherNone, "Sunny": WeatherSunny, "눈": WeatherSnowy, " cloud ": WeatherCloudy} {
		got, err := ParseWeather(in)
		if err != nil || got != want {
			t.Fatalf("ParseWeather(%q) = %q, %v", in, got, err)
		}
	}
}

func TestSessionRederivesOnEveryEdit(t *testing.T) {
	s := NewSession(grid.DefaultColumns, 0)
	if snap := s.Snapshot(); snap.Rows != grid.MinRows || len(snap.Grid.Cells) != 50 {
		t.Fatalf("初始快照应为 5 行 50 格: %+v", snap.Rows)
	}

	long := strings.Repeat("가나다라마", 14)
	snap := s.SetText(long)
	if snap.Rows != grid.CountRequiredRows(long, grid.DefaultColumns) {
		t.Fatalf("行数应随正文增长，实际 %d", snap.Rows)
	}
	if snap.Grid.Overflow {
		t.Fatalf("自动行数不应溢出")
	}

	snap = s.SetText("짧다")
	if snap.Rows != grid.MinRows {
		t.Fatalf("删短后行数应回到 %d，实际 %d", grid.MinRows, snap.Rows)
	}
	if s.Snapshot().Text != "짧다" {
		t.Fatalf("快照应保存最新文本")
	}
}

func TestSessionFixedRowsClamped(t *testing.T) {
	s := NewSession(0, 3)
	snap := s.SetText(strings.Repeat("가", 100))
	if snap.Rows != grid.MinRows {
		t.Fatalf("固定行数应提升到 %d，实际 %d", grid.MinRows, snap.Rows)
	}
	if !snap.Grid.Overflow {
		t.Fatalf("固定 5 行放不下 100 字，应标记溢出")
	}
}

func TestSessionConcurrentEdits(t *testing.T) {
	s := NewSession(grid.DefaultColumns, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.SetText(strings.Repeat("가", n*10))
		}(i)
	}
	wg.Wait()
	snap := s.Snapshot()
	if len(snap.Grid.Cells) != snap.Rows*grid.DefaultColumns {
		t.Fatalf("快照不一致: rows=%d cells=%d", snap.Rows, len(snap.Grid.Cells))
	}
}

func TestSessionKeepsLatestEdit(t *testing.T) {
	s := NewSession(grid.DefaultColumns, 0)
	older := s.begin()
	newer := s.begin()
	s.commit(newer, s.derive("나중"))
	// 先开始的推导晚完成
	s.commit(older, s.derive(strings.Repeat("가", 200)))
	if got := s.Snapshot().Text; got != "나중" {
		t.Fatalf("较早的编辑不应覆盖最新快照，实际 %q", got)
	}

	final := s.SetText("마지막")
	if s.Snapshot().Text != final.Text {
		t.Fatalf("新的编辑应更新快照")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	e := Entry{Title: "눈사람", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Weather: WeatherSnowy, Body: "눈이 왔다."}
	if err := store.Save(e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("2024-01-03")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Title != e.Title || got.Body != e.Body || got.Weather != e.Weather || !got.Date.Equal(e.Date) {
		t.Fatalf("读回的日记不一致: %+v", got)
	}
	keys, err := store.Keys()
	if err != nil || len(keys) != 1 || keys[0] != "2024-01-03" {
		t.Fatalf("Keys = %v, %v", keys, err)
	}
}

func TestStoreErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if _, err := store.Load("2024-02-02"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("缺失的日记应返回 ErrNotFound，实际 %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2024-03-03.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load("2024-03-03"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("损坏的日记应返回 ErrCorrupt，实际 %v", err)
	}

	// 目录外的文件不能通过键读到
	outside := filepath.Join(filepath.Dir(dir), "secret.json")
	if err := os.WriteFile(outside, []byte(`{"title":"x"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	defer os.Remove(outside)
	for _, key := range []string{"../secret", "2024-3-3", "", "undated/../../secret"} {
		if _, err := store.Load(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Load(%q) 应返回 ErrInvalidKey，实际 %v", key, err)
		}
	}
	if _, err := store.Load("undated"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("undated 是合法键，应返回 ErrNotFound，实际 %v", err)
	}
	if keys, err := NewStore(filepath.Join(dir, "missing")).Keys(); err != nil || len(keys) != 0 {
		t.Fatalf("不存在的目录应返回空列表: %v %v", keys, err)
	}
}
