package hashtable

import "testing"

func identityHash(k int) uint32 { return uint32(k) }

func TestSetThenGet(t *testing.T) {
	ht := Mk[int, string](4, identityHash)
	ht.Set(1, "one")
	got, ok := ht.Get(1)
	if !ok || got != "one" {
		t.Fatalf("expected (one, true), got (%q, %v)", got, ok)
	}
}

func TestGetMissingKeyFails(t *testing.T) {
	ht := Mk[int, string](4, identityHash)
	if _, ok := ht.Get(42); ok {
		t.Fatal("expected lookup of an absent key to fail")
	}
}

func TestSetReplacesExistingValue(t *testing.T) {
	ht := Mk[int, string](4, identityHash)
	if !ht.Set(1, "one") {
		t.Fatal("expected first Set to report a fresh insert")
	}
	if ht.Set(1, "uno") {
		t.Fatal("expected second Set on the same key to report replacement, not insert")
	}
	got, _ := ht.Get(1)
	if got != "uno" {
		t.Fatalf("expected replaced value uno, got %q", got)
	}
}

func TestDelRemovesKey(t *testing.T) {
	ht := Mk[int, string](4, identityHash)
	ht.Set(1, "one")
	ht.Del(1)
	if _, ok := ht.Get(1); ok {
		t.Fatal("expected key to be gone after Del")
	}
}

func TestDelOfMissingKeyIsNoop(t *testing.T) {
	ht := Mk[int, string](4, identityHash)
	ht.Del(999) // must not panic
}

func TestSizeCountsAllBuckets(t *testing.T) {
	ht := Mk[int, string](2, identityHash)
	ht.Set(1, "a")
	ht.Set(2, "b")
	ht.Set(3, "c") // collides with key 1 in a 2-bucket table
	if ht.Size() != 3 {
		t.Fatalf("expected size 3, got %d", ht.Size())
	}
}

func TestBucketCollisionKeepsBothEntries(t *testing.T) {
	ht := Mk[int, string](1, identityHash) // single bucket forces collisions
	ht.Set(1, "a")
	ht.Set(2, "b")
	if v, ok := ht.Get(1); !ok || v != "a" {
		t.Fatalf("expected key 1 to survive collision, got (%q, %v)", v, ok)
	}
	if v, ok := ht.Get(2); !ok || v != "b" {
		t.Fatalf("expected key 2 to survive collision, got (%q, %v)", v, ok)
	}
}
