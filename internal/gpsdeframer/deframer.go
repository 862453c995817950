// Package gpsdeframer splits an interleaved byte stream of NMEA sentences
// and UBX binary messages into discrete frames, one byte at a time.
package gpsdeframer

const (
	nmeaSyncChar  = '$'
	nmeaLFChar    = '\n'
	ubloxSyncChar = 0xB5
)

// FrameKind discriminates the two frame families.
type FrameKind int

const (
	FrameNmea FrameKind = iota
	FrameUblox
)

// Frame is one emitted frame. For FrameNmea, Bytes holds the sentence
// (including the leading '$', excluding the LF); sentences containing a NUL
// byte are dropped, and no other byte values are checked.
// For FrameUblox, Bytes holds the raw accumulated binary buffer, terminated
// only by the onset of the next frame (no length field is consulted).
type Frame struct {
	Kind  FrameKind
	Bytes []byte
}

type collectKind int

const (
	collectNone collectKind = iota
	collectNmea
	collectUblox
)

// Deframer is the byte-at-a-time transducer. Zero value is ready to use,
// starting in the Sync state.
type Deframer struct {
	kind collectKind
	buf  []byte
}

// Push feeds one byte and returns the frame emitted by that byte, if any.
// UBX frames are terminated only by the onset of the next frame of either
// family, never by honoring a length field embedded in the UBX payload;
// the consumer validates lengths.
func (d *Deframer) Push(b byte) *Frame {
	switch d.kind {
	case collectNone:
		switch b {
		case nmeaSyncChar:
			d.kind = collectNmea
			d.buf = []byte{b}
		case ubloxSyncChar:
			d.kind = collectUblox
			d.buf = []byte{b}
		}
		return nil

	case collectNmea:
		if b == nmeaLFChar {
			out := d.buf
			d.kind = collectNone
			d.buf = nil
			if isValidPrintable(out) {
				return &Frame{Kind: FrameNmea, Bytes: out}
			}
			return nil
		}
		d.buf = append(d.buf, b)
		return nil

	case collectUblox:
		switch b {
		case nmeaSyncChar:
			out := d.buf
			d.kind = collectNmea
			d.buf = []byte{b}
			return &Frame{Kind: FrameUblox, Bytes: out}
		case ubloxSyncChar:
			out := d.buf
			d.kind = collectUblox
			d.buf = []byte{b}
			return &Frame{Kind: FrameUblox, Bytes: out}
		default:
			d.buf = append(d.buf, b)
			return nil
		}
	}
	return nil
}

// PushAll feeds a whole slice and returns every frame emitted, in order.
func (d *Deframer) PushAll(bs []byte) []Frame {
	var frames []Frame
	for _, b := range bs {
		if f := d.Push(b); f != nil {
			frames = append(frames, *f)
		}
	}
	return frames
}

// isValidPrintable rejects sentences with an interior NUL byte.
func isValidPrintable(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
