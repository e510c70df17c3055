package convert

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// Unspecified marks a time without zone information. It converts to and
// from naive guest datetimes.
var Unspecified = time.FixedZone("Unspecified", 0)

const maxMicrosecond = 999999

func (c *Converter) encodeTime(t time.Time, path []string) (ref.Owned, error) {
	micro := (t.Nanosecond() + 500) / 1000
	if micro > maxMicrosecond {
		micro = maxMicrosecond
	}
	f := guest.DateTimeFields{
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Microsecond: micro,
	}
	switch loc := t.Location(); loc {
	case Unspecified:
	case time.UTC:
		f.Offset = &guest.Offset{}
	default:
		_, off := t.Zone()
		if off%60 != 0 {
			return ref.Owned{}, errors.New(errors.PhaseEncode, errors.KindRangeOverflow).
				Path(path...).
				HostType("time.Time").
				Value(t).
				Detail("zone offset %ds is not a whole number of minutes", off).
				Build()
		}
		f.Offset = &guest.Offset{Hours: off / 3600, Minutes: off % 3600 / 60}
	}

	h, err := c.g.NewDateTime(f)
	if err != nil {
		return ref.Owned{}, errors.New(errors.PhaseEncode, errors.KindRangeOverflow).
			Path(path...).
			HostType("time.Time").
			Value(t).
			Cause(err).
			Detail("time %s is outside the guest calendar", t).
			Build()
	}
	return h, nil
}

// encodeDuration truncates d toward zero to whole microseconds, the
// resolution of a guest timedelta.
func (c *Converter) encodeDuration(d time.Duration, path []string) (ref.Owned, error) {
	secs := int64(d / time.Second)
	micros := int64(d%time.Second) / int64(time.Microsecond)
	h, err := c.g.NewTimeDelta(0, secs, micros)
	if err != nil {
		return ref.Owned{}, errors.Wrap(errors.PhaseEncode, errors.KindRangeOverflow, err, "duration "+d.String())
	}
	return h, nil
}

// decodeTime reads a guest datetime through its attributes and falls back
// to parsing its string form.
func (c *Converter) decodeTime(h ref.Borrowed, path []string) (time.Time, error) {
	if !c.g.HasAttr(h, "year") || (c.g.HasAttr(h, "unix_nano") && !c.g.HasAttr(h, "tzinfo")) {
		return c.parseTime(h, path)
	}

	fields := [...]struct {
		name     string
		optional bool
	}{
		{"year", false}, {"month", false}, {"day", false},
		{"hour", true}, {"minute", true}, {"second", true},
	}
	var v [len(fields)]int
	for i, f := range fields {
		n, ok, err := c.intAttr(h, f.name)
		if err != nil {
			return time.Time{}, c.attrError(h, path, f.name, err)
		}
		if !ok && !f.optional {
			return c.parseTime(h, path)
		}
		v[i] = int(n)
	}

	var nsec int
	if us, ok, err := c.intAttr(h, "microsecond"); err != nil {
		return time.Time{}, c.attrError(h, path, "microsecond", err)
	} else if ok {
		nsec = int(us) * 1000
	} else if ns, ok, err := c.intAttr(h, "nanosecond"); err != nil {
		return time.Time{}, c.attrError(h, path, "nanosecond", err)
	} else if ok {
		nsec = int(ns)
	}

	loc, err := c.location(h, path)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], nsec, loc), nil
}

// location maps a guest tzinfo to a Go location: none is Unspecified, a
// zero offset is UTC and anything else a fixed zone.
func (c *Converter) location(h ref.Borrowed, path []string) (*time.Location, error) {
	if !c.g.HasAttr(h, "tzinfo") {
		return Unspecified, nil
	}
	tz, err := c.g.GetAttr(h, "tzinfo")
	if err != nil {
		return nil, c.attrError(h, path, "tzinfo", err)
	}
	defer tz.Release()
	if c.g.Kind(tz.Borrow()) == guest.KindNone {
		return Unspecified, nil
	}

	hours, _, err := c.intAttr(tz.Borrow(), "hours")
	if err != nil {
		return nil, c.attrError(tz.Borrow(), path, "hours", err)
	}
	minutes, _, err := c.intAttr(tz.Borrow(), "minutes")
	if err != nil {
		return nil, c.attrError(tz.Borrow(), path, "minutes", err)
	}
	off := int(hours*3600 + minutes*60)
	if off == 0 {
		return time.UTC, nil
	}
	return time.FixedZone("", off), nil
}

var timeLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02 15:04:05.999999999Z07:00", false},
	{"2006-01-02 15:04:05.999999999 -0700 MST", false},
	{"2006-01-02 15:04:05.999999999 -0700", false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02 15:04:05.999999999", true},
	{"2006-01-02", true},
}

func (c *Converter) parseTime(h ref.Borrowed, path []string) (time.Time, error) {
	if c.g.Kind(h) == guest.KindString {
		return time.Time{}, c.mismatch(h, path, timeType)
	}
	s, err := c.g.Str(h)
	if err != nil {
		return time.Time{}, c.mismatch(h, path, timeType)
	}
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	for _, l := range timeLayouts {
		if l.naive {
			if t, err := time.ParseInLocation(l.layout, s, Unspecified); err == nil {
				return t, nil
			}
			continue
		}
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if _, off := t.Zone(); off != 0 {
			return t.In(time.FixedZone("", off)), nil
		}
		return t.UTC(), nil
	}
	return time.Time{}, c.mismatch(h, path, timeType)
}

// decodeDuration reads a guest timedelta through days, seconds and
// microseconds, falling back to parsing its string form.
func (c *Converter) decodeDuration(h ref.Borrowed, path []string) (time.Duration, error) {
	days, ok, err := c.intAttr(h, "days")
	if err != nil {
		return 0, c.attrError(h, path, "days", err)
	}
	if !ok {
		return c.parseDuration(h, path)
	}
	secs, _, err := c.intAttr(h, "seconds")
	if err != nil {
		return 0, c.attrError(h, path, "seconds", err)
	}
	micros, _, err := c.intAttr(h, "microseconds")
	if err != nil {
		return 0, c.attrError(h, path, "microseconds", err)
	}
	d, ok := durationOf(days, secs, micros*1000)
	if !ok {
		return 0, errors.RangeOverflow(errors.PhaseDecode, path, formatDelta(days, secs, micros), "time.Duration")
	}
	return d, nil
}

// durationOf sums the parts in nanoseconds, reporting overflow.
func durationOf(days, secs, nanos int64) (time.Duration, bool) {
	const maxSecs = math.MaxInt64 / int64(time.Second)
	total := days*86400 + secs
	if days > maxSecs/86400 || days < -maxSecs/86400 || total > maxSecs || total < -maxSecs {
		return 0, false
	}
	ns := total * int64(time.Second)
	if (nanos > 0 && ns > math.MaxInt64-nanos) || (nanos < 0 && ns < math.MinInt64-nanos) {
		return 0, false
	}
	return time.Duration(ns + nanos), true
}

func formatDelta(days, secs, micros int64) string {
	return strconv.FormatInt(days, 10) + "d" + strconv.FormatInt(secs, 10) + "s" + strconv.FormatInt(micros, 10) + "us"
}

var deltaPattern = regexp.MustCompile(`^(?:(-?\d+) days?, )?(\d+):(\d{2}):(\d{2})(?:\.(\d{1,6}))?$`)

func (c *Converter) parseDuration(h ref.Borrowed, path []string) (time.Duration, error) {
	if c.g.Kind(h) == guest.KindString {
		return 0, c.mismatch(h, path, durationType)
	}
	s, err := c.g.Str(h)
	if err != nil {
		return 0, c.mismatch(h, path, durationType)
	}
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	m := deltaPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, c.mismatch(h, path, durationType)
	}
	days, _ := strconv.ParseInt(m[1], 10, 64)
	hh, _ := strconv.ParseInt(m[2], 10, 64)
	mm, _ := strconv.ParseInt(m[3], 10, 64)
	ss, _ := strconv.ParseInt(m[4], 10, 64)
	var micros int64
	if m[5] != "" {
		frac := m[5] + strings.Repeat("0", 6-len(m[5]))
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}
	d, ok := durationOf(days, hh*3600+mm*60+ss, micros*1000)
	if !ok {
		return 0, errors.RangeOverflow(errors.PhaseDecode, path, s, "time.Duration")
	}
	return d, nil
}

// intAttr reads an integer attribute. ok is false when it is absent.
func (c *Converter) intAttr(h ref.Borrowed, name string) (int64, bool, error) {
	if !c.g.HasAttr(h, name) {
		return 0, false, nil
	}
	a, err := c.g.GetAttr(h, name)
	if err != nil {
		return 0, false, err
	}
	defer a.Release()
	n, err := c.g.AsInt64(a.Borrow())
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *Converter) attrError(h ref.Borrowed, path []string, name string, cause error) error {
	return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Path(appendPath(path, name)...).
		GuestType(c.g.TypeName(h)).
		Cause(cause).
		Detail("attribute %s", name).
		Build()
}
