package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("title: x\n"))
	b := Sum([]byte("title: x\n"))
	if a != b {
		t.Fatalf("sum not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestEqual(t *testing.T) {
	block := []byte("status: open\n")
	if !Equal(Sum(block), block) {
		t.Error("expected match")
	}
	if Equal(Sum(block), []byte("status: done\n")) {
		t.Error("expected mismatch")
	}
	if Equal("", nil) {
		t.Error("empty sum must never match")
	}
}
