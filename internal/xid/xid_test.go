package xid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedAndOrdered(t *testing.T) {
	first := New("shift")
	second := New("shift")
	if !strings.HasPrefix(first, "shift_") {
		t.Fatalf("expected shift_ prefix, got %s", first)
	}
	if len(first) != len("shift_")+26 {
		t.Fatalf("unexpected id length %d", len(first))
	}
	if first >= second {
		t.Fatalf("expected increasing ids, got %s then %s", first, second)
	}
	if New("") == "" {
		t.Fatalf("expected bare id without prefix")
	}
}
