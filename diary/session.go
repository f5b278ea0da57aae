package diary

import (
	"sync"

	"github.com/ByLCY/grimilgi/grid"
)

// Snapshot 是某次编辑后重新推导出的书写区状态。
type Snapshot struct {
	Text string
	Rows int
	Grid grid.Grid
}

// Session 模拟编辑界面：每次文本变化都从头重新计算行数与格子，不做增量更新。
type Session struct {
	mu      sync.Mutex
	columns int
	// fixedRows > 0 时固定行数，否则随正文自动伸缩。
	fixedRows int
	snap      Snapshot
	// seq 是已发出的编辑序号，applied 是当前快照对应的序号。
	seq, applied uint64
}

// NewSession 创建编辑会话。rows 为 0 表示自动行数。
func NewSession(columns, rows int) *Session {
	if columns < 1 {
		columns = grid.DefaultColumns
	}
	s := &Session{columns: columns, fixedRows: rows}
	s.snap = s.derive("")
	return s
}

// SetText 替换正文并返回重新推导的快照。
// 并发编辑时以最后一次调用的文本为准，较早的推导晚完成也不会覆盖它。
func (s *Session) SetText(text string) Snapshot {
	ticket := s.begin()
	snap := s.derive(text)
	s.commit(ticket, snap)
	return snap
}

// begin 为一次编辑分配递增的序号。
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// commit 只在快照不比当前的旧时保存它。
func (s *Session) commit(ticket uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket > s.applied {
		s.snap = snap
		s.applied = ticket
	}
}

// Snapshot 返回最近一次推导的结果。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) derive(text string) Snapshot {
	rows := s.fixedRows
	if rows <= 0 {
		rows = grid.CountRequiredRows(text, s.columns)
	}
	rows = grid.ClampRows(rows)
	return Snapshot{
		Text: text,
		Rows: rows,
		Grid: grid.BuildGrid(text, rows, s.columns),
	}
}
