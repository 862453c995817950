// Package gpstime parses GPS time messages and maintains the counter-to-UTC
// time reference.
package gpstime

import (
	"encoding/binary"
	"fmt"
)

const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	classNav             = 0x01
	idNavTimeGPS         = 0x20
	navTimeGPSPayloadLen = 16
)

// TimeGPS is the decoded NAV-TIMEGPS message (UBX class 0x01 id 0x20).
type TimeGPS struct {
	ITOW  uint32 // ms, GPS time of week
	FTOW  int32  // ns, fractional part of ITOW
	Week  int16
	LeapS int8
	Valid uint8
	TAcc  uint32 // ns
}

// IsNavTimeGPS reports whether a raw UBX frame (as emitted by
// gpsdeframer, beginning with the 0xB5 sync byte) is a NAV-TIMEGPS message.
// The deframer does not validate UBX length fields, so this requires at
// least the 6-byte header and inspects only its sync, class and id bytes;
// ParseNavTimeGPS checks the declared and actual lengths.
func IsNavTimeGPS(frame []byte) bool {
	if len(frame) < 6 {
		return false
	}
	return frame[0] == ubxSync1 && frame[1] == ubxSync2 &&
		frame[2] == classNav && frame[3] == idNavTimeGPS
}

// ParseNavTimeGPS decodes a raw UBX frame into TimeGPS. The frame must
// begin with the 6-byte UBX header (sync1 sync2 class id lenLo lenHi).
func ParseNavTimeGPS(frame []byte) (*TimeGPS, error) {
	if !IsNavTimeGPS(frame) {
		return nil, fmt.Errorf("gpstime: frame is not a NAV-TIMEGPS message")
	}
	declaredLen := int(binary.LittleEndian.Uint16(frame[4:6]))
	if declaredLen < navTimeGPSPayloadLen {
		return nil, fmt.Errorf("gpstime: NAV-TIMEGPS declared length %d shorter than expected %d", declaredLen, navTimeGPSPayloadLen)
	}
	if len(frame) < 6+navTimeGPSPayloadLen {
		return nil, fmt.Errorf("gpstime: NAV-TIMEGPS frame too short: %d bytes", len(frame))
	}
	p := frame[6 : 6+navTimeGPSPayloadLen]
	return &TimeGPS{
		ITOW:  binary.LittleEndian.Uint32(p[0:4]),
		FTOW:  int32(binary.LittleEndian.Uint32(p[4:8])),
		Week:  int16(binary.LittleEndian.Uint16(p[8:10])),
		LeapS: int8(p[10]),
		Valid: p[11],
		TAcc:  binary.LittleEndian.Uint32(p[12:16]),
	}, nil
}
