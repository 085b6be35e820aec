package pipeline

import (
	"sync"
	"testing"
)

func TestGateSingleSlot(t *testing.T) {
	var g Gate
	if !g.TryAcquire() {
		t.Fatalf("expected first acquire to succeed")
	}
	if g.TryAcquire() {
		t.Fatalf("expected second acquire to fail while held")
	}
	if !g.Busy() {
		t.Fatalf("expected gate to report busy while held")
	}
	g.Release()
	if g.Busy() {
		t.Fatalf("expected gate to be free after release")
	}
	if !g.TryAcquire() {
		t.Fatalf("expected acquire to succeed after release")
	}
}

func TestGateConcurrentAcquire(t *testing.T) {
	var g Gate
	const attempts = 32

	var wg sync.WaitGroup
	winners := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	var count int
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one goroutine to win the gate, got %d", count)
	}
}
