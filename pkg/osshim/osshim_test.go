package osshim

import (
	"sync"
	"testing"
	"time"
)

func TestFakeClockOnlyAdvancesExplicitly(t *testing.T) {
	f := NewFake(100)
	secs, ok := f.SysTime()
	if !ok || secs != 100 {
		t.Fatalf("got %d, want 100", secs)
	}
	time.Sleep(5 * time.Millisecond)
	secs, _ = f.SysTime()
	if secs != 100 {
		t.Fatalf("fake clock advanced on its own: %d", secs)
	}
	f.Advance(10)
	secs, _ = f.SysTime()
	if secs != 110 {
		t.Fatalf("got %d, want 110", secs)
	}
}

func TestFakeWaitOnTimesOutOnAdvance(t *testing.T) {
	f := NewFake(0)
	l := f.CreateLock()
	l.Lock()

	// WaitOn registers its deadline with the fake clock synchronously,
	// before it blocks — starting the Advance goroutine right before
	// the blocking call leaves it virtually no time to run first.
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Advance(5)
	}()
	ok := l.WaitOn(5 * time.Second)
	l.Unlock()
	if ok {
		t.Fatal("expected WaitOn to report timeout")
	}
}

func TestFakeWaitOnWokenBySignal(t *testing.T) {
	f := NewFake(0)
	l := f.CreateLock()

	var mu sync.Mutex
	woken := false
	done := make(chan struct{})
	go func() {
		l.Lock()
		ok := l.WaitOn(time.Hour)
		mu.Lock()
		woken = ok
		mu.Unlock()
		l.Unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Lock()
	l.Signal()
	l.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitOn never woke up after Signal")
	}
	mu.Lock()
	defer mu.Unlock()
	if !woken {
		t.Fatal("expected WaitOn to report signaled, not timed out")
	}
}

func TestRealSysTimeMonotonic(t *testing.T) {
	r := NewReal(nil)
	a, _ := r.SysTime()
	time.Sleep(5 * time.Millisecond)
	b, _ := r.SysTime()
	if b < a {
		t.Fatalf("time went backwards: %d -> %d", a, b)
	}
}

func TestRealWaitOnTimeout(t *testing.T) {
	r := NewReal(nil)
	l := r.CreateLock()
	l.Lock()
	ok := l.WaitOn(10 * time.Millisecond)
	l.Unlock()
	if ok {
		t.Fatal("expected timeout")
	}
}

func TestFakeRandomDeterministic(t *testing.T) {
	a := NewFake(0)
	b := NewFake(0)
	for i := 0; i < 10; i++ {
		if a.Random() != b.Random() {
			t.Fatal("two fakes seeded identically diverged")
		}
	}
}
