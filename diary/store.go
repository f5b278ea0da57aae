package diary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCorrupt 表示保存的日记无法解析。
	ErrCorrupt = errors.New("日记数据损坏")
	// ErrNotFound 表示没有对应日期的日记。
	ErrNotFound = errors.New("日记不存在")
	// ErrInvalidKey 表示存储键既不是日期也不是 "undated"。
	ErrInvalidKey = errors.New("无效的日记键")
)

const undatedKey = "undated"

// Store 以目录中的 JSON 文件保存日记，每个日期一篇。
type Store struct {
	dir string
}

// NewStore 创建以 dir 为根目录的存储。
func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// validKey 只接受 DateLayout 格式的日期或 "undated"，键因此不会指向目录之外。
func validKey(key string) bool {
	if key == undatedKey {
		return true
	}
	d, err := time.Parse(DateLayout, key)
	return err == nil && d.Format(DateLayout) == key
}

// Key 返回日记的存储键（日期）；没有日期时使用 "undated"。
func Key(e Entry) string {
	if e.Date.IsZero() {
		return undatedKey
	}
	return e.Date.Format(DateLayout)
}

// Save 写入日记，已存在时覆盖。
func (s *Store) Save(e Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("创建日记目录失败: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化日记失败: %w", err)
	}
	tmp := s.path(Key(e)) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入日记失败: %w", err)
	}
	if err := os.Rename(tmp, s.path(Key(e))); err != nil {
		return fmt.Errorf("写入日记失败: %w", err)
	}
	return nil
}

// Load 读取指定键的日记。
func (s *Store) Load(key string) (Entry, error) {
	var e Entry
	if !validKey(key) {
		return e, fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return e, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("读取日记 %s 失败: %w", key, err)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("%s: %w: %v", key, ErrCorrupt, err)
	}
	return e, nil
}

// Keys 按日期顺序列出已保存的日记。
func (s *Store) Keys() ([]string, error) {
	items, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取日记目录失败: %w", err)
	}
	var keys []string
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if !validKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
