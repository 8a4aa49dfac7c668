package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateIsUniqueAcrossGoroutines(t *testing.T) {
	const workers, perWorker = 8, 2000

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, GenerateTransactionNo())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()
}

func TestSnowflakeIsMonotonic(t *testing.T) {
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("new snowflake: %v", err)
	}
	prev := s.Generate()
	for i := 0; i < 10000; i++ {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("expected increasing ids, %d after %d", next, prev)
		}
		prev = next
	}
}

func TestNewSnowflakeRejectsBadWorker(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatal("expected error for negative worker id")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Fatal("expected error for worker id overflow")
	}
}

func TestPrefixes(t *testing.T) {
	if !strings.HasPrefix(GenerateOrderNo(), "ORD") {
		t.Fatal("order number must start with ORD")
	}
	if !strings.HasPrefix(GenerateTransactionNo(), "TXN") {
		t.Fatal("transaction number must start with TXN")
	}
}
