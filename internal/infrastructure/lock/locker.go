package lock

import (
	"context"
	"sync"
)

// Locker 保证同一账户的 读取-计算-写入 串行执行，不同账户互不影响。
// Acquire 返回的 release 函数必须调用且可重复调用。
type Locker interface {
	Acquire(ctx context.Context, accountID int64, owner string) (release func(), err error)
}

// LocalLocker 进程内的账户锁，单实例部署或未启用 Redis 时使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, accountID int64, _ string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[accountID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[accountID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(accountID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(accountID, s)
		})
	}, nil
}

// 没有等待者时回收 slot，map 不会随账户数无限增长
func (l *LocalLocker) unref(accountID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, accountID)
	}
}

var _ Locker = (*LocalLocker)(nil)
