package guest

import (
	"fmt"
	"hash/fnv"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/wippyai/hostbridge/ref"
)

const (
	minYear        = 1
	maxYear        = 9999
	maxDeltaDays   = 999999999
	secondsPerDay  = 86400
	microsPerSec   = 1000000
	maxOffsetMins  = 24*60 - 1
	dateTimeLayout = "2006-01-02 15:04:05"
)

var datetimeModule = &starlarkstruct.Module{
	Name: "datetime",
	Members: starlark.StringDict{
		"datetime":  starlark.NewBuiltin("datetime", makeDateTime),
		"date":      starlark.NewBuiltin("date", makeDate),
		"timedelta": starlark.NewBuiltin("timedelta", makeTimeDelta),
		"timezone":  starlark.NewBuiltin("timezone", makeTimeZone),
		"utc":       &TimeZone{},
	},
}

// TimeZone is a fixed UTC offset.
type TimeZone struct {
	minutes int
}

var (
	_ starlark.HasAttrs   = (*TimeZone)(nil)
	_ starlark.Comparable = (*TimeZone)(nil)
)

func (z *TimeZone) String() string {
	if z.minutes == 0 {
		return "UTC"
	}
	return "UTC" + formatOffset(z.minutes)
}

func (z *TimeZone) Type() string          { return "timezone" }
func (z *TimeZone) Freeze()               {}
func (z *TimeZone) Truth() starlark.Bool  { return starlark.True }
func (z *TimeZone) Hash() (uint32, error) { return uint32(z.minutes), nil }

func (z *TimeZone) Attr(name string) (starlark.Value, error) {
	switch name {
	case "hours":
		return starlark.MakeInt(z.minutes / 60), nil
	case "minutes":
		return starlark.MakeInt(z.minutes % 60), nil
	}
	return nil, nil
}

func (z *TimeZone) AttrNames() []string { return []string{"hours", "minutes"} }

func (z *TimeZone) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	return compareInts(op, z.minutes, y.(*TimeZone).minutes)
}

func (z *TimeZone) location() *time.Location {
	if z.minutes == 0 {
		return time.UTC
	}
	return time.FixedZone(z.String(), z.minutes*60)
}

func formatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}

// Date is a calendar date.
type Date struct {
	year, month, day int
}

var (
	_ starlark.HasAttrs   = (*Date)(nil)
	_ starlark.Comparable = (*Date)(nil)
)

func (d *Date) String() string        { return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day) }
func (d *Date) Type() string          { return "date" }
func (d *Date) Freeze()               {}
func (d *Date) Truth() starlark.Bool  { return starlark.True }
func (d *Date) Hash() (uint32, error) { return hashString(d.String()), nil }

func (d *Date) Attr(name string) (starlark.Value, error) {
	switch name {
	case "year":
		return starlark.MakeInt(d.year), nil
	case "month":
		return starlark.MakeInt(d.month), nil
	case "day":
		return starlark.MakeInt(d.day), nil
	case "isoformat":
		return stringMethod("isoformat", d, d.String), nil
	}
	return nil, nil
}

func (d *Date) AttrNames() []string { return []string{"day", "isoformat", "month", "year"} }

func (d *Date) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	o := y.(*Date)
	return compareInts(op, d.year*10000+d.month*100+d.day, o.year*10000+o.month*100+o.day)
}

// DateTime is a date and time of day with an optional fixed offset. A nil
// zone makes the value naive.
type DateTime struct {
	zone *TimeZone

	year, month, day                 int
	hour, minute, second, microsecond int
}

var (
	_ starlark.HasAttrs   = (*DateTime)(nil)
	_ starlark.HasBinary  = (*DateTime)(nil)
	_ starlark.Comparable = (*DateTime)(nil)
)

func (dt *DateTime) String() string {
	s := dt.time().Format(dateTimeLayout)
	if dt.microsecond != 0 {
		s += fmt.Sprintf(".%06d", dt.microsecond)
	}
	if dt.zone != nil {
		s += formatOffset(dt.zone.minutes)
	}
	return s
}

func (dt *DateTime) Type() string          { return "datetime" }
func (dt *DateTime) Freeze()               {}
func (dt *DateTime) Truth() starlark.Bool  { return starlark.True }
func (dt *DateTime) Hash() (uint32, error) { return hashString(dt.String()), nil }

func (dt *DateTime) Attr(name string) (starlark.Value, error) {
	switch name {
	case "year":
		return starlark.MakeInt(dt.year), nil
	case "month":
		return starlark.MakeInt(dt.month), nil
	case "day":
		return starlark.MakeInt(dt.day), nil
	case "hour":
		return starlark.MakeInt(dt.hour), nil
	case "minute":
		return starlark.MakeInt(dt.minute), nil
	case "second":
		return starlark.MakeInt(dt.second), nil
	case "microsecond":
		return starlark.MakeInt(dt.microsecond), nil
	case "tzinfo":
		if dt.zone == nil {
			return starlark.None, nil
		}
		return dt.zone, nil
	case "isoformat":
		return stringMethod("isoformat", dt, func() string {
			s := dt.String()
			return s[:10] + "T" + s[11:]
		}), nil
	case "date":
		return starlark.NewBuiltin("date", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return &Date{year: dt.year, month: dt.month, day: dt.day}, nil
		}).BindReceiver(dt), nil
	}
	return nil, nil
}

func (dt *DateTime) AttrNames() []string {
	return []string{"date", "day", "hour", "isoformat", "microsecond", "minute", "month", "second", "tzinfo", "year"}
}

func (dt *DateTime) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS:
		if td, ok := y.(*TimeDelta); ok {
			return dt.add(td, 1)
		}
	case syntax.MINUS:
		if side == starlark.Right {
			return nil, nil
		}
		switch o := y.(type) {
		case *TimeDelta:
			return dt.add(o, -1)
		case *DateTime:
			if (dt.zone == nil) != (o.zone == nil) {
				return nil, fmt.Errorf("can't subtract offset-naive and offset-aware datetimes")
			}
			a, b := dt.time(), o.time()
			return normalizeDelta(0, a.Unix()-b.Unix(), int64(a.Nanosecond()-b.Nanosecond())/1000)
		}
	}
	return nil, nil
}

func (dt *DateTime) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	o := y.(*DateTime)
	if (dt.zone == nil) != (o.zone == nil) {
		switch op {
		case syntax.EQL:
			return false, nil
		case syntax.NEQ:
			return true, nil
		}
		return false, fmt.Errorf("can't compare offset-naive and offset-aware datetimes")
	}
	return compareInts(op, dt.time().Compare(o.time()), 0)
}

func (dt *DateTime) time() time.Time {
	loc := time.UTC
	if dt.zone != nil {
		loc = dt.zone.location()
	}
	return time.Date(dt.year, time.Month(dt.month), dt.day, dt.hour, dt.minute, dt.second, dt.microsecond*1000, loc)
}

func (dt *DateTime) add(td *TimeDelta, sign int64) (starlark.Value, error) {
	t := dt.time().
		AddDate(0, 0, int(sign*td.days)).
		Add(time.Duration(sign*td.seconds) * time.Second).
		Add(time.Duration(sign*td.microseconds) * time.Microsecond)
	if t.Year() < minYear || t.Year() > maxYear {
		return nil, fmt.Errorf("date value out of range")
	}
	return &DateTime{
		zone:        dt.zone,
		year:        t.Year(),
		month:       int(t.Month()),
		day:         t.Day(),
		hour:        t.Hour(),
		minute:      t.Minute(),
		second:      t.Second(),
		microsecond: t.Nanosecond() / 1000,
	}, nil
}

// TimeDelta is a normalized duration: 0 <= seconds < 86400 and
// 0 <= microseconds < 1000000, with the sign carried by days.
type TimeDelta struct {
	days, seconds, microseconds int64
}

var (
	_ starlark.HasAttrs   = (*TimeDelta)(nil)
	_ starlark.HasBinary  = (*TimeDelta)(nil)
	_ starlark.HasUnary   = (*TimeDelta)(nil)
	_ starlark.Comparable = (*TimeDelta)(nil)
)

func (td *TimeDelta) String() string {
	var s string
	if td.days != 0 {
		s = fmt.Sprintf("%d day", td.days)
		if td.days != 1 && td.days != -1 {
			s += "s"
		}
		s += ", "
	}
	s += fmt.Sprintf("%d:%02d:%02d", td.seconds/3600, td.seconds/60%60, td.seconds%60)
	if td.microseconds != 0 {
		s += fmt.Sprintf(".%06d", td.microseconds)
	}
	return s
}

func (td *TimeDelta) Type() string { return "timedelta" }
func (td *TimeDelta) Freeze()      {}

func (td *TimeDelta) Truth() starlark.Bool {
	return td.days != 0 || td.seconds != 0 || td.microseconds != 0
}

func (td *TimeDelta) Hash() (uint32, error) { return hashString(td.String()), nil }

func (td *TimeDelta) Attr(name string) (starlark.Value, error) {
	switch name {
	case "days":
		return starlark.MakeInt64(td.days), nil
	case "seconds":
		return starlark.MakeInt64(td.seconds), nil
	case "microseconds":
		return starlark.MakeInt64(td.microseconds), nil
	case "total_seconds":
		return starlark.NewBuiltin("total_seconds", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			total := float64(td.days*secondsPerDay+td.seconds) + float64(td.microseconds)/microsPerSec
			return starlark.Float(total), nil
		}).BindReceiver(td), nil
	}
	return nil, nil
}

func (td *TimeDelta) AttrNames() []string {
	return []string{"days", "microseconds", "seconds", "total_seconds"}
}

func (td *TimeDelta) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	o, ok := y.(*TimeDelta)
	if !ok {
		return nil, nil
	}
	switch op {
	case syntax.PLUS:
		return normalizeDelta(td.days+o.days, td.seconds+o.seconds, td.microseconds+o.microseconds)
	case syntax.MINUS:
		a, b := td, o
		if side == starlark.Right {
			a, b = o, td
		}
		return normalizeDelta(a.days-b.days, a.seconds-b.seconds, a.microseconds-b.microseconds)
	}
	return nil, nil
}

func (td *TimeDelta) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return normalizeDelta(-td.days, -td.seconds, -td.microseconds)
	case syntax.PLUS:
		return td, nil
	}
	return nil, nil
}

func (td *TimeDelta) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	o := y.(*TimeDelta)
	c := cmp64(td.days, o.days)
	if c == 0 {
		c = cmp64(td.seconds, o.seconds)
	}
	if c == 0 {
		c = cmp64(td.microseconds, o.microseconds)
	}
	return compareInts(op, c, 0)
}

// normalizeDelta carries microseconds into seconds and seconds into days
// using floor division.
func normalizeDelta(days, seconds, micros int64) (*TimeDelta, error) {
	q, r := floorDivMod(micros, microsPerSec)
	seconds += q
	micros = r
	q, r = floorDivMod(seconds, secondsPerDay)
	days += q
	seconds = r
	if days < -maxDeltaDays || days > maxDeltaDays {
		return nil, fmt.Errorf("days=%d; must have magnitude <= %d", days, maxDeltaDays)
	}
	return &TimeDelta{days: days, seconds: seconds, microseconds: micros}, nil
}

func floorDivMod(a, b int64) (int64, int64) {
	q, r := a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInts(op syntax.Token, a, b int) (bool, error) {
	switch op {
	case syntax.EQL:
		return a == b, nil
	case syntax.NEQ:
		return a != b, nil
	case syntax.LT:
		return a < b, nil
	case syntax.LE:
		return a <= b, nil
	case syntax.GT:
		return a > b, nil
	case syntax.GE:
		return a >= b, nil
	}
	return false, fmt.Errorf("unsupported comparison %s", op)
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func stringMethod(name string, recv starlark.Value, fn func() string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return starlark.String(fn()), nil
	}).BindReceiver(recv)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func validateDate(year, month, day int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("year %d is out of range", year)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be in 1..12")
	}
	if day < 1 || day > daysIn(year, month) {
		return fmt.Errorf("day is out of range for month")
	}
	return nil
}

func newDateTime(f DateTimeFields) (*DateTime, error) {
	if err := validateDate(f.Year, f.Month, f.Day); err != nil {
		return nil, err
	}
	switch {
	case f.Hour < 0 || f.Hour > 23:
		return nil, fmt.Errorf("hour must be in 0..23")
	case f.Minute < 0 || f.Minute > 59:
		return nil, fmt.Errorf("minute must be in 0..59")
	case f.Second < 0 || f.Second > 59:
		return nil, fmt.Errorf("second must be in 0..59")
	case f.Microsecond < 0 || f.Microsecond >= microsPerSec:
		return nil, fmt.Errorf("microsecond must be in 0..999999")
	}
	dt := &DateTime{
		year:        f.Year,
		month:       f.Month,
		day:         f.Day,
		hour:        f.Hour,
		minute:      f.Minute,
		second:      f.Second,
		microsecond: f.Microsecond,
	}
	if f.Offset != nil {
		z, err := newTimeZone(f.Offset.Hours*60 + f.Offset.Minutes)
		if err != nil {
			return nil, err
		}
		dt.zone = z
	}
	return dt, nil
}

func newTimeZone(minutes int) (*TimeZone, error) {
	if minutes < -maxOffsetMins || minutes > maxOffsetMins {
		return nil, fmt.Errorf("offset must be strictly between -24h and 24h")
	}
	return &TimeZone{minutes: minutes}, nil
}

func makeDateTime(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var f DateTimeFields
	var tz starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"year", &f.Year, "month", &f.Month, "day", &f.Day,
		"hour?", &f.Hour, "minute?", &f.Minute, "second?", &f.Second,
		"microsecond?", &f.Microsecond, "tzinfo?", &tz,
	); err != nil {
		return nil, err
	}
	dt, err := newDateTime(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	switch z := tz.(type) {
	case nil, starlark.NoneType:
	case *TimeZone:
		dt.zone = z
	default:
		return nil, fmt.Errorf("%s: tzinfo must be a timezone, got %s", b.Name(), tz.Type())
	}
	return dt, nil
}

func makeDate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var d Date
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "year", &d.year, "month", &d.month, "day", &d.day); err != nil {
		return nil, err
	}
	if err := validateDate(d.year, d.month, d.day); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return &d, nil
}

func makeTimeDelta(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var days, seconds, micros, millis, minutes, hours, weeks int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"days?", &days, "seconds?", &seconds, "microseconds?", &micros,
		"milliseconds?", &millis, "minutes?", &minutes, "hours?", &hours, "weeks?", &weeks,
	); err != nil {
		return nil, err
	}
	td, err := normalizeDelta(
		int64(days)+int64(weeks)*7,
		int64(seconds)+int64(minutes)*60+int64(hours)*3600,
		int64(micros)+int64(millis)*1000,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return td, nil
}

func makeTimeZone(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var offset starlark.Value
	var minutes int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "offset?", &offset, "minutes?", &minutes); err != nil {
		return nil, err
	}
	total := minutes
	switch o := offset.(type) {
	case nil:
	case *TimeDelta:
		if o.microseconds != 0 || o.seconds%60 != 0 {
			return nil, fmt.Errorf("%s: offset must be a whole number of minutes", b.Name())
		}
		total += int(o.days*secondsPerDay+o.seconds) / 60
	default:
		hours, err := starlark.AsInt32(offset)
		if err != nil {
			return nil, fmt.Errorf("%s: offset must be hours or a timedelta, got %s", b.Name(), offset.Type())
		}
		total += hours * 60
	}
	z, err := newTimeZone(total)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return z, nil
}

// NewDateTime builds a guest datetime from structured fields.
func (rt *Runtime) NewDateTime(f DateTimeFields) (ref.Owned, error) {
	dt, err := newDateTime(f)
	if err != nil {
		return ref.Owned{}, err
	}
	return rt.track(dt)
}

// NewTimeDelta builds a normalized guest timedelta.
func (rt *Runtime) NewTimeDelta(days, seconds, microseconds int64) (ref.Owned, error) {
	td, err := normalizeDelta(days, seconds, microseconds)
	if err != nil {
		return ref.Owned{}, err
	}
	return rt.track(td)
}
