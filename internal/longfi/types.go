// Package longfi implements the LongFi fragmentation engine: reassembly
// of multi-fragment datagrams on receive, and splitting of outbound
// datagrams into radio-sized fragments on transmit.
package longfi

import "github.com/ccroswhite/concentrate/internal/radio"

// Quality is one per-fragment outcome recorded in a reassembled packet's
// quality trace.
type Quality int

const (
	CrcOk Quality = iota
	CrcFail
	Missed
)

func (q Quality) String() string {
	switch q {
	case CrcOk:
		return "ok"
	case CrcFail:
		return "fail"
	case Missed:
		return "missed"
	default:
		return "unknown"
	}
}

// Packet is the typed LongFi packet emitted by the parser, carrying every
// field a reassembled datagram needs on output.
type Packet struct {
	OUI         uint32
	DeviceID    uint16
	PacketID    uint8
	Fingerprint uint16
	Sequence    uint16
	Payload     []byte
	TimestampUs uint32
	RSSI        float32
	SNR         float32
	Spreading   radio.SpreadingFactor
	Quality     []Quality
	CRCOk       bool // true only if every fragment's quality is CrcOk
}

// RadioRx is a raw LoRa receive as seen by the parser.
type RadioRx struct {
	CRCCheck    radio.CRCOutcome
	Payload     []byte
	TimestampUs uint32
	RSSI        float32
	SNR         float32
	Spreading   radio.SpreadingFactor
}

// ParseOutcomeKind discriminates the parser's three output kinds.
type ParseOutcomeKind int

const (
	OutcomeNone ParseOutcomeKind = iota
	OutcomeCompleted
	OutcomeBegin
)

// ParseOutcome is the parser's emitted event.
type ParseOutcome struct {
	Kind     ParseOutcomeKind
	Packet   *Packet // set when Kind == OutcomeCompleted
	PacketID uint8   // set when Kind == OutcomeBegin
}
