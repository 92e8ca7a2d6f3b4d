package run

import (
	"sync"

	"github.com/John-Robertt/photomv/internal/domain"
)

// Sink 收集并发阶段（extract / move）产生的失败记录。
//
// 约束：
// - Add 必须并发安全（多个 worker 同时写）
// - Drain 只在所有 worker 结束（WaitGroup 屏障之后）调用，返回插入顺序
//   的副本；最终排序由 RunReport.Finalize 统一负责
type Sink struct {
	mu   sync.Mutex
	recs []domain.FailureRecord
}

func (s *Sink) Add(rec domain.FailureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func (s *Sink) Drain() []domain.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FailureRecord, len(s.recs))
	copy(out, s.recs)
	return out
}
