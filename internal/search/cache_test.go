package search

import "testing"

func TestEmbeddingCache_GetMiss(t *testing.T) {
	c := newEmbeddingCache(2)
	if _, ok := c.get("missing"); ok {
		t.Error("expected a miss on an empty cache")
	}
}

func TestEmbeddingCache_PutThenGet(t *testing.T) {
	c := newEmbeddingCache(2)
	c.put("hello", []float32{1, 2, 3})

	v, ok := c.get("hello")
	if !ok {
		t.Fatal("expected a hit after put")
	}
	if v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", v)
	}
}

func TestEmbeddingCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newEmbeddingCache(2)
	c.put("a", []float32{1})
	c.put("b", []float32{2})
	c.get("a") // a is now most recently used; b is least recently used
	c.put("c", []float32{3}) // should evict b, not a

	if _, ok := c.get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestEmbeddingCache_PutOverwritesExisting(t *testing.T) {
	c := newEmbeddingCache(2)
	c.put("a", []float32{1})
	c.put("a", []float32{9})

	v, ok := c.get("a")
	if !ok || v[0] != 9 {
		t.Errorf("got %v, ok=%v, want [9] true", v, ok)
	}
}
