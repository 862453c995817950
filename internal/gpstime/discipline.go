package gpstime

import (
	"time"

	"github.com/ccroswhite/concentrate/internal/gpsdeframer"
)

// LastTrigger is the subset of the HAL façade the discipline module needs:
// the concentrator's free-running microsecond counter.
type LastTrigger interface {
	LastTrigger() uint32
}

// Discipline couples the GPS deframer's output to the time Reference,
// updating it only on receipt of the canonical NAV-TIMEGPS message:
// arbitrary NMEA or other UBX frames never perturb the reference.
type Discipline struct {
	ref Reference
	trg LastTrigger
}

// NewDiscipline binds the discipline module to a trigger-counter source.
func NewDiscipline(trg LastTrigger) *Discipline {
	return &Discipline{trg: trg}
}

// HandleFrame processes one deframed GPS frame. NMEA frames and non
// NAV-TIMEGPS UBX frames are accepted but never perturb the reference.
func (d *Discipline) HandleFrame(f gpsdeframer.Frame) {
	if f.Kind != gpsdeframer.FrameUblox {
		return
	}
	if !IsNavTimeGPS(f.Bytes) {
		return
	}
	msg, err := ParseNavTimeGPS(f.Bytes)
	if err != nil {
		return
	}
	counter := d.trg.LastTrigger()
	times := TimesFromNavTimeGPS(msg)
	d.ref.Establish(counter, times)
}

// Convert turns a packet's counter timestamp into absolute time, falling
// back to wall-clock time with gpsDerived=false when no reference has been
// established yet.
func (d *Discipline) Convert(counterUs uint32) (t time.Time, gpsDerived bool) {
	if t, ok := d.ref.ToAbsolute(counterUs); ok {
		return t, true
	}
	return time.Now().UTC(), false
}
