package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/meridian-social/meridian/internal/domain"
)

// Keyset pagination with a two-part cursor. Three representations are
// involved:
//   - a raw result row, from which the cursor parts are extracted
//   - a LabeledResult, the (primary, secondary) pair in domain form
//   - a Cursor, the two string parts of the packed "<primary>::<secondary>"
//
// The packed cursor is opaque to callers; they hand it back verbatim.

const cursorSep = "::"

type Cursor struct {
	Primary   string
	Secondary string
}

func (c Cursor) Pack() string {
	return c.Primary + cursorSep + c.Secondary
}

func UnpackCursor(s string) (Cursor, error) {
	parts := strings.Split(s, cursorSep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Cursor{}, domain.ErrMalformedCursor
	}
	return Cursor{Primary: parts[0], Secondary: parts[1]}, nil
}

// LabeledResult is the ordering key of one row in domain form. The
// secondary part exists purely to break ties deterministically.
type LabeledResult struct {
	Primary   string
	Secondary string
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Keyset translates between raw rows, labeled results, and cursors for one
// (primary, secondary) sort. Implementations map domain values to lexically
// sortable cursor strings and back.
type Keyset[R any] interface {
	Columns() (primary, secondary string)
	Label(row R) LabeledResult
	ToCursor(labeled LabeledResult) Cursor
	FromCursor(cursor Cursor) (LabeledResult, error)
}

// PackFromResult derives the next-page cursor from an already-ordered batch.
// Pagination continues from the tail, so the last row is used. An empty
// batch yields "": no more pages.
func PackFromResult[R any](k Keyset[R], rows []R) string {
	if len(rows) == 0 {
		return ""
	}
	return k.ToCursor(k.Label(rows[len(rows)-1])).Pack()
}

type PageOpts struct {
	Limit     int
	Cursor    string
	Direction Direction // Desc when empty
}

// Paginate applies the keyset ordering predicate, sort order, and limit to
// the query. A malformed cursor fails before any query is issued.
func Paginate[R any](db *gorm.DB, k Keyset[R], opts PageOpts) (*gorm.DB, error) {
	direction := opts.Direction
	if direction == "" {
		direction = Desc
	}
	primary, secondary := k.Columns()

	if opts.Cursor != "" {
		cursor, err := UnpackCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		labeled, err := k.FromCursor(cursor)
		if err != nil {
			return nil, err
		}
		cond, args := keysetCondition(primary, secondary, direction, labeled)
		db = db.Where(cond, args...)
	}

	if direction == Asc {
		db = db.Order(primary + " asc").Order(secondary + " asc")
	} else {
		db = db.Order(primary + " desc").Order(secondary + " desc")
	}
	if opts.Limit > 0 {
		db = db.Limit(opts.Limit)
	}
	return db, nil
}

// keysetCondition builds the strict seek predicate. Unlike offset
// pagination this is stable under concurrent inserts at the head of the
// ordering and can ride a covering index on (primary, secondary).
func keysetCondition(primary, secondary string, direction Direction, labeled LabeledResult) (string, []any) {
	op := "<"
	if direction == Asc {
		op = ">"
	}
	cond := fmt.Sprintf("(%s %s ? OR (%s = ? AND %s %s ?))",
		primary, op, primary, secondary, op)
	return cond, []any{labeled.Primary, labeled.Primary, labeled.Secondary}
}

// TimeCidRow is a raw result carrying the common (sortAt, cid) ordering key.
type TimeCidRow struct {
	SortAt time.Time
	Cid    string
}

// TimeCidKeyset orders by a timestamp column with a cid tiebreak. Cursor
// primaries are millisecond-epoch strings so they stay compact and sortable.
type TimeCidKeyset struct {
	PrimaryCol   string
	SecondaryCol string
}

func (k TimeCidKeyset) Columns() (string, string) {
	return k.PrimaryCol, k.SecondaryCol
}

func (k TimeCidKeyset) Label(row TimeCidRow) LabeledResult {
	return LabeledResult{
		Primary:   row.SortAt.UTC().Format(time.RFC3339Nano),
		Secondary: row.Cid,
	}
}

func (k TimeCidKeyset) ToCursor(labeled LabeledResult) Cursor {
	t, err := time.Parse(time.RFC3339Nano, labeled.Primary)
	if err != nil {
		// Labels are produced internally from time values; a bad one is a
		// programming error, not client input.
		return Cursor{Primary: "0", Secondary: labeled.Secondary}
	}
	return Cursor{
		Primary:   strconv.FormatInt(t.UnixMilli(), 10),
		Secondary: labeled.Secondary,
	}
}

func (k TimeCidKeyset) FromCursor(cursor Cursor) (LabeledResult, error) {
	millis, err := strconv.ParseInt(cursor.Primary, 10, 64)
	if err != nil {
		return LabeledResult{}, domain.ErrMalformedCursor
	}
	return LabeledResult{
		Primary:   time.UnixMilli(millis).UTC().Format(time.RFC3339Nano),
		Secondary: cursor.Secondary,
	}, nil
}

// CursorTime recovers the timestamp form of a TimeCidKeyset labeled result.
func (k TimeCidKeyset) CursorTime(labeled LabeledResult) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, labeled.Primary)
	if err != nil {
		return time.Time{}, domain.ErrMalformedCursor
	}
	return t, nil
}

// ScoreCidRow is a raw result ordered by a floating ranking score.
type ScoreCidRow struct {
	Score float64
	Cid   string
}

// ScoreCidKeyset orders by a float score with a cid tiebreak. Scores are
// rounded to integer strings in the cursor; the loss of precision is
// acceptable because the secondary part still breaks ties.
type ScoreCidKeyset struct {
	PrimaryCol   string
	SecondaryCol string
}

const scoreScale = 1e6

func (k ScoreCidKeyset) Columns() (string, string) {
	return k.PrimaryCol, k.SecondaryCol
}

func (k ScoreCidKeyset) Label(row ScoreCidRow) LabeledResult {
	return LabeledResult{
		Primary:   strconv.FormatInt(int64(math.Round(row.Score*scoreScale)), 10),
		Secondary: row.Cid,
	}
}

func (k ScoreCidKeyset) ToCursor(labeled LabeledResult) Cursor {
	return Cursor(labeled)
}

func (k ScoreCidKeyset) FromCursor(cursor Cursor) (LabeledResult, error) {
	if _, err := strconv.ParseInt(cursor.Primary, 10, 64); err != nil {
		return LabeledResult{}, domain.ErrMalformedCursor
	}
	return LabeledResult(cursor), nil
}

// CursorScore recovers the float form of a ScoreCidKeyset labeled result.
func (k ScoreCidKeyset) CursorScore(labeled LabeledResult) (float64, error) {
	n, err := strconv.ParseInt(labeled.Primary, 10, 64)
	if err != nil {
		return 0, domain.ErrMalformedCursor
	}
	return float64(n) / scoreScale, nil
}
