package gpstime

import "time"

// gpsEpoch is the start of the GPS time scale (1980-01-06T00:00:00Z), used
// to turn a (week, iTOW, fTOW) triple into an absolute instant.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Times pairs the GPS system time with its UTC counterpart (GPS minus leap
// seconds).
type Times struct {
	GPS time.Time
	UTC time.Time
}

// TimesFromNavTimeGPS derives the (GPS, UTC) pair from a decoded
// NAV-TIMEGPS message.
func TimesFromNavTimeGPS(m *TimeGPS) Times {
	gps := gpsEpoch.Add(time.Duration(m.Week) * 7 * 24 * time.Hour).
		Add(time.Duration(m.ITOW) * time.Millisecond).
		Add(time.Duration(m.FTOW) * time.Nanosecond)
	utc := gps.Add(-time.Duration(m.LeapS) * time.Second)
	return Times{GPS: gps, UTC: utc}
}

// Reference anchors a concentrator trigger-counter value to an absolute
// (UTC, GPS) instant, letting later counter timestamps be converted to
// absolute time.
type Reference struct {
	set          bool
	counterAtRef uint32
	times        Times
}

// Establish re-anchors the reference at the given counter value. Called
// only when a canonical NAV-TIMEGPS message has been parsed and the
// concentrator's last trigger counter has been read.
func (r *Reference) Establish(counter uint32, t Times) {
	r.set = true
	r.counterAtRef = counter
	r.times = t
}

// Established reports whether a reference has ever been set.
func (r *Reference) Established() bool {
	return r.set
}

// ToAbsolute converts a packet's counter timestamp to an absolute UTC
// instant using the current reference. ok is false if no reference has
// been established yet; callers should fall back to wall-clock time and
// mark the resulting stamp non-GPS.
func (r *Reference) ToAbsolute(counterUs uint32) (t time.Time, ok bool) {
	if !r.set {
		return time.Time{}, false
	}
	delta := int64(counterUs) - int64(r.counterAtRef)
	// counter is a free-running uint32 microsecond count; handle wraparound
	// by taking the signed difference modulo 2^32.
	const wrap = int64(1) << 32
	if delta > wrap/2 {
		delta -= wrap
	} else if delta < -wrap/2 {
		delta += wrap
	}
	return r.times.UTC.Add(time.Duration(delta) * time.Microsecond), true
}
