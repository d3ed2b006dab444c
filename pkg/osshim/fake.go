package osshim

import (
	"sync"
	"time"
)

// Fake is a deterministic OS for tests: SysTime only advances when the
// test calls Advance, and every Lock it hands out shares the same
// virtual clock, so a test can simulate a retransmit timeout or wrap
// wait firing without a real sleep.
type Fake struct {
	mu      sync.Mutex
	now     int64
	waiters map[*fakeLock]int64 // lock -> deadline, for locks currently in a timed WaitOn
	seed    uint32
	logs    []string
}

// NewFake starts the virtual clock at t0 seconds.
func NewFake(t0 int64) *Fake {
	return &Fake{now: t0, seed: 1, waiters: make(map[*fakeLock]int64)}
}

func (f *Fake) SysTime() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now, true
}

// Advance moves the virtual clock forward by secs seconds and wakes
// every lock whose WaitOn deadline has now passed.
func (f *Fake) Advance(secs int64) {
	f.mu.Lock()
	f.now += secs
	now := f.now
	var fire []*fakeLock
	for l, deadline := range f.waiters {
		if deadline <= now {
			fire = append(fire, l)
		}
	}
	for _, l := range fire {
		delete(f.waiters, l)
	}
	f.mu.Unlock()

	for _, l := range fire {
		l.cond.Broadcast()
	}
}

func (f *Fake) register(l *fakeLock, deadline int64) {
	f.mu.Lock()
	f.waiters[l] = deadline
	f.mu.Unlock()
}

func (f *Fake) unregister(l *fakeLock) {
	f.mu.Lock()
	delete(f.waiters, l)
	f.mu.Unlock()
}

func (f *Fake) CreateLock() Lock {
	l := &fakeLock{clock: f}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (f *Fake) Random() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	// xorshift32: deterministic, cheap, good enough for jitter tests.
	x := f.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	f.seed = x
	return x
}

func (f *Fake) Log(level Level, format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, level.String()+": "+sprintf(format, args...))
}

// Logs returns every message recorded via Log, for assertions.
func (f *Fake) Logs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.logs...)
}

type fakeLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	clock *Fake
}

func (l *fakeLock) Lock()   { l.mu.Lock() }
func (l *fakeLock) Unlock() { l.mu.Unlock() }
func (l *fakeLock) Signal() { l.cond.Signal() }

// WaitOn must be called with l held, exactly like the real
// implementation. A timed wait registers this lock's deadline with the
// fake clock; Advance broadcasts once that deadline is reached. A real
// Signal still wakes the wait immediately regardless of the deadline.
func (l *fakeLock) WaitOn(timeout time.Duration) bool {
	if timeout <= 0 {
		l.cond.Wait()
		return true
	}

	now, _ := l.clock.SysTime()
	deadline := now + int64(timeout/time.Second)
	l.clock.register(l, deadline)
	defer l.clock.unregister(l)

	l.cond.Wait()

	now, _ = l.clock.SysTime()
	return now < deadline
}
