package common

import (
	"errors"
	"sync"
	"testing"
)

func TestGuardSerialisesCallers(t *testing.T) {
	g := &Guard{}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counter int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			counter++
			mu.Unlock()
			g.Release()
		}()
	}
	wg.Wait()
	if counter != 8 {
		t.Fatalf("expected 8 completed sections, got %d", counter)
	}
}

func TestGuardRejectsReentrantCall(t *testing.T) {
	g := &Guard{}
	if err := g.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := g.External(func() error {
		if err := g.Acquire(); !errors.Is(err, ErrReentrantCall) {
			t.Fatalf("expected ErrReentrantCall, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("external: %v", err)
	}
	g.Release()

	if err := g.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	g.Release()
}

func TestGuardClearsLatchOnPanic(t *testing.T) {
	g := &Guard{}
	if err := g.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = g.External(func() error { panic("collaborator fault") })
	}()
	g.Release()

	if err := g.Acquire(); err != nil {
		t.Fatalf("acquire after panicking external call: %v", err)
	}
	g.Release()
}

func TestNilGuardIsInert(t *testing.T) {
	var g *Guard
	if err := g.Acquire(); err != nil {
		t.Fatalf("nil guard acquire: %v", err)
	}
	g.Release()
	if err := g.External(func() error { return nil }); err != nil {
		t.Fatalf("nil guard external: %v", err)
	}
}
