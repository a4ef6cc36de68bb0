package digest

import "testing"

func Test_Sum_KnownValue(t *testing.T) {
	got := Sum([]byte(""))
	if got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("Sum(empty) = %s", got)
	}
	if len(got) != Size*2 {
		t.Errorf("expected %d hex chars, got %d", Size*2, len(got))
	}
}

func Test_Sum_DetectsChange(t *testing.T) {
	a := Sum([]byte("pattern theory basics"))
	b := Sum([]byte("pattern theory advanced concepts"))
	if a == b {
		t.Error("different content produced the same digest")
	}
	if a != Sum([]byte("pattern theory basics")) {
		t.Error("same content produced different digests")
	}
}
