package opcache

import (
	"context"
	"sync"
	"testing"
)

const q1 = `{ widget(id: "1") { name } }`
const q2 = `{ widget(id: "2") { name } }`

func TestGetCachesParsedDocument(t *testing.T) {
	c := New(0, "gen-1")
	d1, err := c.Get(context.Background(), q1, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d2, err := c.Get(context.Background(), q1, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d1 != d2 {
		t.Fatal("expected identical cached document pointer on second Get")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
}

func TestGetParseErrorNotCached(t *testing.T) {
	c := New(0, "gen-1")
	if _, err := c.Get(context.Background(), "{ not valid", ""); err == nil {
		t.Fatal("expected parse error")
	}
	if c.Len() != 0 {
		t.Fatalf("expected no entry cached for a failed parse, got %d", c.Len())
	}
}

func TestDistinctQueriesGetDistinctEntries(t *testing.T) {
	c := New(0, "gen-1")
	if _, err := c.Get(context.Background(), q1, ""); err != nil {
		t.Fatalf("Get q1: %v", err)
	}
	if _, err := c.Get(context.Background(), q2, ""); err != nil {
		t.Fatalf("Get q2: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 cached entries, got %d", c.Len())
	}
}

func TestGenerationScopesFingerprint(t *testing.T) {
	a := New(0, "gen-a")
	b := New(0, "gen-b")
	if _, err := a.Get(context.Background(), q1, ""); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := b.Get(context.Background(), q1, ""); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatal("expected each generation-scoped cache to hold its own entry")
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(1, "gen-1")
	d1, err := c.Get(context.Background(), q1, "")
	if err != nil {
		t.Fatalf("Get q1: %v", err)
	}
	d2, err := c.Get(context.Background(), q2, "")
	if err != nil {
		t.Fatalf("Get q2: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected capacity-bounded cache to hold 1 entry, got %d", c.Len())
	}
	if again, _ := c.Get(context.Background(), q2, ""); again != d2 {
		t.Fatal("expected the most recently used entry (q2) to stay cached")
	}
	if again, _ := c.Get(context.Background(), q1, ""); again == d1 {
		t.Fatal("expected the least recently used entry (q1) to have been evicted")
	}
}

func TestResetClearsEntries(t *testing.T) {
	c := New(0, "gen-1")
	if _, err := c.Get(context.Background(), q1, ""); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("expected 0 entries after Reset, got %d", c.Len())
	}
}

func TestConcurrentGetsCollapseToOneParse(t *testing.T) {
	c := New(0, "gen-1")
	const n = 50
	var wg sync.WaitGroup
	docs := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.Get(context.Background(), q1, "")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			docs[i] = d
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if docs[i] != docs[0] {
			t.Fatal("expected every concurrent Get to observe the same parsed document")
		}
	}
}
