package keys

import (
	"reflect"
	"strings"
	"testing"
)

func TestRowID(t *testing.T) {
	if got := RowID("/product/42", "catalog"); got != "/product/42#catalog" {
		t.Fatalf("RowID: %q", got)
	}
}

func TestRowIDIsInjective(t *testing.T) {
	pairs := [][2]string{
		{"a#b", "c"}, {"a", "b#c"},
		{`a\`, "#c"}, {`a\#`, "c"}, {`a`, `\#c`},
		{`a\\`, "c"}, {`a\`, `\c`},
		{"", "a#b"}, {"a#b", ""},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		id := RowID(p[0], p[1])
		if prev, dup := seen[id]; dup {
			t.Fatalf("RowID(%q,%q) == RowID(%q,%q) == %q", p[0], p[1], prev[0], prev[1], id)
		}
		seen[id] = p
	}
	if got := RowID(`a#b\`, "c"); got != `a\#b\\#c` {
		t.Fatalf("escaping: %q", got)
	}
}

func TestTagsDedupKeepsFirstOccurrence(t *testing.T) {
	got := Tags([]string{"b", "", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if Tags(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestJoinSkipsEmpty(t *testing.T) {
	if got := Join("entry", "", "/x"); got != "entry:/x" {
		t.Fatalf("got %q", got)
	}
}

func TestShortIsStableAndBounded(t *testing.T) {
	a := Short("k", strings.Repeat("x", 4096))
	b := Short("k", strings.Repeat("x", 4096))
	if a != b {
		t.Fatalf("not deterministic: %q vs %q", a, b)
	}
	if len(a) != len("k:")+16 {
		t.Fatalf("unexpected length %d", len(a))
	}
}
