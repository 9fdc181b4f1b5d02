package database

import (
	"errors"
	"testing"
	"time"

	"github.com/meridian-social/meridian/internal/domain"
)

func TestCursorPackUnpack(t *testing.T) {
	cursor := Cursor{Primary: "1700000000000", Secondary: "mzcabc"}
	packed := cursor.Pack()

	got, err := UnpackCursor(packed)
	if err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	if got != cursor {
		t.Fatalf("expected %+v got %+v", cursor, got)
	}
}

func TestUnpackCursorMalformed(t *testing.T) {
	cases := []string{"", "justone", "a::b::c", "::b", "a::"}
	for _, raw := range cases {
		_, err := UnpackCursor(raw)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected invalid request for %q, got %v", raw, err)
		}
	}
}

func TestPackFromResultEmptyBatch(t *testing.T) {
	keyset := TimeCidKeyset{PrimaryCol: "sort_at", SecondaryCol: "cid"}
	if cursor := PackFromResult[TimeCidRow](keyset, nil); cursor != "" {
		t.Fatalf("expected empty cursor, got %q", cursor)
	}
}

func TestPackFromResultUsesLastRow(t *testing.T) {
	keyset := TimeCidKeyset{PrimaryCol: "sort_at", SecondaryCol: "cid"}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []TimeCidRow{
		{SortAt: base, Cid: "mzc01"},
		{SortAt: base.Add(-time.Minute), Cid: "mzc02"},
		{SortAt: base.Add(-2 * time.Minute), Cid: "mzc03"},
	}

	packed := PackFromResult[TimeCidRow](keyset, rows)
	cursor, err := UnpackCursor(packed)
	if err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	if cursor.Secondary != "mzc03" {
		t.Fatalf("expected cursor from last row, got %+v", cursor)
	}

	labeled, err := keyset.FromCursor(cursor)
	if err != nil {
		t.Fatalf("from cursor failed: %v", err)
	}
	when, err := keyset.CursorTime(labeled)
	if err != nil {
		t.Fatalf("cursor time failed: %v", err)
	}
	if !when.Equal(base.Add(-2 * time.Minute)) {
		t.Fatalf("expected %v got %v", base.Add(-2*time.Minute), when)
	}
}

func TestTimeCidKeysetRoundTrip(t *testing.T) {
	keyset := TimeCidKeyset{PrimaryCol: "sort_at", SecondaryCol: "cid"}
	row := TimeCidRow{SortAt: time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC), Cid: "mzcff"}

	labeled := keyset.Label(row)
	cursor := keyset.ToCursor(labeled)
	back, err := keyset.FromCursor(cursor)
	if err != nil {
		t.Fatalf("from cursor failed: %v", err)
	}
	when, err := keyset.CursorTime(back)
	if err != nil {
		t.Fatalf("cursor time failed: %v", err)
	}
	// Millisecond precision survives the cursor encoding.
	if !when.Equal(row.SortAt.Truncate(time.Millisecond)) {
		t.Fatalf("expected %v got %v", row.SortAt.Truncate(time.Millisecond), when)
	}
	if back.Secondary != "mzcff" {
		t.Fatalf("expected secondary preserved, got %q", back.Secondary)
	}
}

func TestTimeCidKeysetRejectsBadCursor(t *testing.T) {
	keyset := TimeCidKeyset{PrimaryCol: "sort_at", SecondaryCol: "cid"}
	_, err := keyset.FromCursor(Cursor{Primary: "not-a-number", Secondary: "mzc"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestKeysetConditionDesc(t *testing.T) {
	cond, args := keysetCondition("sort_at", "cid", Desc, LabeledResult{Primary: "P", Secondary: "S"})
	want := "(sort_at < ? OR (sort_at = ? AND cid < ?))"
	if cond != want {
		t.Fatalf("expected %q got %q", want, cond)
	}
	if len(args) != 3 || args[0] != "P" || args[1] != "P" || args[2] != "S" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestKeysetConditionAsc(t *testing.T) {
	cond, _ := keysetCondition("sort_at", "cid", Asc, LabeledResult{Primary: "P", Secondary: "S"})
	want := "(sort_at > ? OR (sort_at = ? AND cid > ?))"
	if cond != want {
		t.Fatalf("expected %q got %q", want, cond)
	}
}

func TestScoreCidKeysetRoundTrip(t *testing.T) {
	keyset := ScoreCidKeyset{PrimaryCol: "score", SecondaryCol: "cid"}
	row := ScoreCidRow{Score: 3.141592, Cid: "mzc42"}

	labeled := keyset.Label(row)
	back, err := keyset.FromCursor(keyset.ToCursor(labeled))
	if err != nil {
		t.Fatalf("from cursor failed: %v", err)
	}
	score, err := keyset.CursorScore(back)
	if err != nil {
		t.Fatalf("cursor score failed: %v", err)
	}
	if score < 3.141591 || score > 3.141593 {
		t.Fatalf("score lost too much precision: %v", score)
	}
}
