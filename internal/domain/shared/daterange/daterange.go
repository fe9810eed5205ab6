package daterange

import (
	"errors"
	"time"
)

// Layout is the wire format of calendar dates.
const Layout = "2006-01-02"

var ErrInvalidRange = errors.New("daterange: checkout must be after checkin")

// DateRange is the half-open night interval [CheckIn, CheckOut). Both ends
// are calendar dates held at UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(Layout, checkIn)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	out, err := time.Parse(Layout, checkOut)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	return New(in, out)
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

const secondsPerDay = 24 * 60 * 60

// Nights counts calendar days between the two ends. It works on Unix seconds
// because time.Duration saturates after roughly 292 years.
func (dr DateRange) Nights() int {
	return int((dr.CheckOut.Unix() - dr.CheckIn.Unix()) / secondsPerDay)
}

// Overlaps reports whether the two ranges share at least one night.
// Touching ranges (one checks out the day the other checks in) do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.CheckIn) && t.Before(dr.CheckOut)
}

// Days lists every night of the stay, check-out excluded.
func (dr DateRange) Days() []time.Time {
	out := make([]time.Time, 0, dr.Nights())
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(Layout) + "/" + dr.CheckOut.Format(Layout)
}
