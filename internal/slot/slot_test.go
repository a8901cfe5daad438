package slot

import (
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	id, err := Parse("01.06.2025 10:00", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.String() != "01.06.2025 10:00" {
		t.Fatalf("expected canonical form back, got %q", id.String())
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !id.At().Equal(want) {
		t.Fatalf("expected %s, got %s", want, id.At())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, v := range []string{"", "2025-06-01 10:00", "01.06.2025", "32.01.2025 10:00", "01.06.2025 10:00:30"} {
		if _, err := Parse(v, time.UTC); err == nil {
			t.Fatalf("expected error for %q", v)
		}
	}
}

func TestEqualityIsExact(t *testing.T) {
	a, _ := Parse("02.06.2025 15:00", time.UTC)
	b, _ := Parse("02.06.2025 15:00", time.UTC)
	c, _ := Parse("02.06.2025 15:01", time.UTC)
	if !a.Equal(b) {
		t.Fatal("identical serialized forms must be equal")
	}
	if a.Equal(c) {
		t.Fatal("different minutes must not be equal")
	}
}

func TestSortAscending(t *testing.T) {
	mk := func(v string) ID {
		id, err := Parse(v, time.UTC)
		if err != nil {
			t.Fatalf("parse %q: %v", v, err)
		}
		return id
	}
	ids := []ID{mk("03.06.2025 09:00"), mk("01.06.2025 10:00"), mk("02.06.2025 15:00")}
	SortAscending(ids)
	want := []string{"01.06.2025 10:00", "02.06.2025 15:00", "03.06.2025 09:00"}
	for i, w := range want {
		if ids[i].String() != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, ids[i].String())
		}
	}
}
