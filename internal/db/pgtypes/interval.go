// Package pgtypes holds Go types for PostgreSQL columns that pgx does not
// map to a convenient Go type on its own.
package pgtypes

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	microsPerDay   = int64(24 * time.Hour / time.Microsecond)
	microsPerMonth = 30 * microsPerDay
)

// Interval maps a PostgreSQL INTERVAL column to a time.Duration.
// Months are treated as 30 days.
type Interval struct {
	Duration time.Duration
	// Valid is false for NULL
	Valid bool
}

// NewInterval returns a non-NULL interval.
func NewInterval(d time.Duration) Interval {
	return Interval{Duration: d, Valid: true}
}

// NewNullInterval returns a NULL interval.
func NewNullInterval() Interval {
	return Interval{}
}

// Scan implements sql.Scanner.
func (i *Interval) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Interval{}
		return nil
	case pgtype.Interval:
		*i = fromPG(v)
		return nil
	case string:
		var pg pgtype.Interval
		if err := pg.Scan(v); err != nil {
			return fmt.Errorf("failed to parse interval string %q: %w", v, err)
		}
		*i = fromPG(pg)
		return nil
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Interval", src)
	}
}

// Value implements driver.Valuer. Everything is stored as microseconds and
// PostgreSQL normalizes on output.
func (i Interval) Value() (driver.Value, error) {
	if !i.Valid {
		return nil, nil
	}
	return pgtype.Interval{
		Microseconds: i.Duration.Microseconds(),
		Valid:        true,
	}, nil
}

// Or returns the duration, or fallback when the interval is NULL or not positive.
func (i Interval) Or(fallback time.Duration) time.Duration {
	if !i.Valid || i.Duration <= 0 {
		return fallback
	}
	return i.Duration
}

func (i Interval) String() string {
	if !i.Valid {
		return "NULL"
	}
	return i.Duration.String()
}

// ParseDuration parses a Go duration string such as "30m" or "24h".
// An empty string yields a NULL interval.
func ParseDuration(s string) (Interval, error) {
	if s == "" {
		return NewNullInterval(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(d), nil
}

func fromPG(v pgtype.Interval) Interval {
	micros := v.Microseconds + int64(v.Days)*microsPerDay + int64(v.Months)*microsPerMonth
	return Interval{
		Duration: time.Duration(micros) * time.Microsecond,
		Valid:    v.Valid,
	}
}
