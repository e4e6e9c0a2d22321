// Package persistence implements the workload repositories on top of
// database.Connection. One implementation serves PostgreSQL and SQLite;
// the dialect type covers the column encodings that differ.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
)

// dialect encodes values whose column types differ between drivers:
// PostgreSQL stores TIMESTAMPTZ and TEXT[]; SQLite stores RFC3339 text and
// JSON arrays.
type dialect struct {
	driver database.Driver
}

func dialectFor(conn database.Connection) dialect {
	return dialect{driver: conn.Driver()}
}

func (d dialect) postgres() bool {
	return d.driver == database.DriverPostgres
}

// timeArg converts t into a bind argument.
func (d dialect) timeArg(t time.Time) any {
	if d.postgres() {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTimeArg converts an optional time into a bind argument.
func (d dialect) nullableTimeArg(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return d.timeArg(*t)
}

// skillsArg encodes a skill list.
func (d dialect) skillsArg(skills []string) (any, error) {
	if skills == nil {
		skills = []string{}
	}
	if d.postgres() {
		return pq.Array(skills), nil
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("failed to encode skills: %w", err)
	}
	return string(b), nil
}

// skillsDest returns the scan destination for a skills column.
func (d dialect) skillsDest(dst *[]string) any {
	if d.postgres() {
		return dst
	}
	return &jsonStrings{dst: dst}
}

// timeValue scans TIMESTAMPTZ values and RFC3339 text alike.
type timeValue struct {
	Time  time.Time
	Valid bool
}

func (v *timeValue) Scan(src any) error {
	v.Time, v.Valid = time.Time{}, false
	switch s := src.(type) {
	case nil:
		return nil
	case time.Time:
		v.Time, v.Valid = s.UTC(), true
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time, v.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

// Ptr returns nil for NULL values.
func (v timeValue) Ptr() *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// jsonStrings scans a JSON array column into a string slice.
type jsonStrings struct {
	dst *[]string
}

func (j *jsonStrings) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*j.dst = []string{}
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("unsupported skills value %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode skills: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*j.dst = out
	return nil
}

// chunk splits n items into [start, end) ranges of at most size.
func chunk(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, [2]int{start, end})
	}
	return out
}
