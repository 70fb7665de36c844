package retriever

import (
	"testing"
	"time"

	"github.com/sandevgo/readr/internal/core"
)

func snip(title string) []core.Snippet {
	return []core.Snippet{{SourceID: "test", Title: title, Text: title + " text"}}
}

func TestCache_GetPut(t *testing.T) {
	c := NewCache(time.Minute, 10)

	if _, _, ok := c.Get("missing"); ok {
		t.Error("empty cache returned a hit")
	}

	c.Put("gatsby", snip("The Great Gatsby"))
	got, fresh, ok := c.Get("gatsby")
	if !ok || !fresh {
		t.Fatalf("ok = %v, fresh = %v, want both true", ok, fresh)
	}
	if got[0].Title != "The Great Gatsby" {
		t.Errorf("title = %q", got[0].Title)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(time.Minute, 10)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Put("key", snip("entry"))

	current = current.Add(2 * time.Minute)
	got, fresh, ok := c.Get("key")
	if !ok {
		t.Fatal("expired entry should still be retrievable as stale")
	}
	if fresh {
		t.Error("entry past TTL reported fresh")
	}
	if len(got) != 1 {
		t.Errorf("got %d snippets, want 1", len(got))
	}

	// Refreshing resets the clock.
	c.Put("key", snip("entry"))
	if _, fresh, _ := c.Get("key"); !fresh {
		t.Error("refreshed entry should be fresh")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(time.Minute, 2)

	c.Put("a", snip("a"))
	c.Put("b", snip("b"))
	c.Get("a") // touch a so b becomes oldest
	c.Put("c", snip("c"))

	if _, _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, _, ok := c.Get("a"); !ok {
		t.Error("a should survive, it was touched")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestCache_CopyOnRead(t *testing.T) {
	c := NewCache(time.Minute, 10)
	c.Put("key", snip("original"))

	got, _, _ := c.Get("key")
	got[0].Title = "mutated"

	again, _, _ := c.Get("key")
	if again[0].Title != "original" {
		t.Errorf("cache entry mutated through returned slice: %q", again[0].Title)
	}
}
