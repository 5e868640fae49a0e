package common

import (
	"reflect"
	"testing"
)

func TestIsDigits(t *testing.T) {
	tests := map[string]bool{
		"4602076571121": true,
		"0":             true,
		"":              false,
		"12a4":          false,
		" 123":          false,
		"-12":           false,
		"99.5":          false,
	}
	for in, want := range tests {
		if got := IsDigits(in); got != want {
			t.Errorf("IsDigits(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := SplitAndTrim(" 12345678 | Milk |  99.5 ", "|")
	want := []string{"12345678", "Milk", "99.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitAndTrim = %v, want %v", got, want)
	}
}

func TestUUIDint64Unique(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		if id <= 0 {
			t.Fatalf("id = %d, want positive", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
