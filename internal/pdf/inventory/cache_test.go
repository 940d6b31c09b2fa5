package inventory

import (
	"testing"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

func inv(names ...string) []fieldmap.FieldInfo {
	out := make([]fieldmap.FieldInfo, 0, len(names))
	for _, n := range names {
		out = append(out, fieldmap.FieldInfo{Name: n, Type: fieldmap.FieldTypeText})
	}
	return out
}

func TestCache_Basic(t *testing.T) {
	cache := NewCache(3)

	cache.Put("key1", inv("a"))
	cache.Put("key2", inv("b"))
	cache.Put("key3", inv("c"))

	if cache.Len() != 3 {
		t.Errorf("Expected cache size 3, got %d", cache.Len())
	}

	fields, found := cache.Get("key1")
	if !found {
		t.Fatal("Expected to find key1")
	}
	if len(fields) != 1 || fields[0].Name != "a" {
		t.Errorf("Expected inventory [a], got %v", fields)
	}

	// key2 is now least recently used
	cache.Put("key4", inv("d"))
	if cache.Len() != 3 {
		t.Errorf("Expected cache size 3 after eviction, got %d", cache.Len())
	}
	if _, found = cache.Get("key2"); found {
		t.Error("Expected key2 to be evicted")
	}
	if _, found = cache.Get("key1"); !found {
		t.Error("Expected key1 to survive eviction")
	}
}

func TestCache_Stats(t *testing.T) {
	cache := NewCache(2)

	cache.Put("key1", inv("a"))
	cache.Put("key2", inv("b"))

	cache.Get("key1") // hit
	cache.Get("key1") // hit
	cache.Get("key3") // miss
	cache.Get("key4") // miss

	stats := cache.Stats()
	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Expected 2 misses, got %d", stats.Misses)
	}
	if stats.HitRate != 50.0 {
		t.Errorf("Expected 50%% hit rate, got %.1f", stats.HitRate)
	}
	if stats.Capacity != 2 || stats.Size != 2 {
		t.Errorf("Unexpected size/capacity %d/%d", stats.Size, stats.Capacity)
	}

	cache.Clear()
	if s := cache.Stats(); s.Hits != 0 || s.Size != 0 {
		t.Errorf("Expected cleared stats, got %+v", s)
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(1)
	orig := []fieldmap.FieldInfo{{Name: "country", Type: fieldmap.FieldTypeDropdown, Options: []string{"USA", "Canada"}}}
	cache.Put("k", orig)

	orig[0].Options[0] = "mutated"
	got, _ := cache.Get("k")
	got[0].Name = "changed"
	got[0].Options[1] = "changed"

	again, _ := cache.Get("k")
	if again[0].Name != "country" || again[0].Options[0] != "USA" || again[0].Options[1] != "Canada" {
		t.Errorf("cached entry was mutated: %+v", again[0])
	}
}

func TestCache_RemoveAndDefaultCapacity(t *testing.T) {
	cache := NewCache(0)
	if cache.Stats().Capacity != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, cache.Stats().Capacity)
	}

	cache.Put("k", inv("a"))
	if !cache.Remove("k") {
		t.Error("Expected Remove to report true")
	}
	if cache.Remove("k") {
		t.Error("Expected second Remove to report false")
	}
}

func BenchmarkCache_Operations(b *testing.B) {
	cache := NewCache(1000)
	fields := inv("a", "b", "c")
	keys := make([]string, 100)
	for i := range keys {
		keys[i] = Identity([]byte{byte(i)})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		cache.Put(key, fields)
		cache.Get(key)
	}
}
