// Package wire is the Wire Codec Bridge: bidirectional
// adapters between the internal packet types (radio, longfi) and the UDP
// protocol-buffer envelopes exchanged on the wire.
//
// The message shapes are hand-assembled on top of
// google.golang.org/protobuf/encoding/protowire's low-level tag/varint
// primitives rather than generated by protoc - no codegen step required,
// and the wire format is standard protobuf, just hand-marshaled.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ccroswhite/concentrate/internal/longfi"
	"github.com/ccroswhite/concentrate/internal/radio"
)

// Field numbers for RadioReq / TxReq.
const (
	fRadioReqID = 1
	fRadioReqTx = 2

	fTxReqFreq           = 1
	fTxReqRadio          = 2
	fTxReqPower          = 3
	fTxReqBandwidth      = 4
	fTxReqSpreading      = 5
	fTxReqCodeRate       = 6
	fTxReqInvertPolarity = 7
	fTxReqOmitCRC        = 8
	fTxReqImplicitHeader = 9
	fTxReqPayload        = 10
)

// Field numbers for RadioResp.
const (
	fRadioRespID       = 1
	fRadioRespTxStatus = 2
	fRadioRespRxPacket = 3
	fRadioRespParseErr = 4

	fTxStatusSuccess = 1

	fRxFreq        = 1
	fRxIFChain     = 2
	fRxCRCCheck    = 3
	fRxTimestampUs = 4
	fRxAbsSec      = 5
	fRxAbsNsec     = 6
	fRxGPSDerived  = 7
	fRxRadio       = 8
	fRxBandwidth   = 9
	fRxSpreading   = 10
	fRxCodeRate    = 11
	fRxRSSI        = 12
	fRxSNRMean     = 13
	fRxSNRMin      = 14
	fRxSNRMax      = 15
	fRxPayload     = 16
)

// Field numbers for LongFiReq / LongFiTxUplink.
const (
	fLongFiReqID       = 1
	fLongFiReqTxUplink = 2

	fTxUplinkDisableEncoding      = 1
	fTxUplinkDisableFragmentation = 2
	fTxUplinkOUI                  = 3
	fTxUplinkDeviceID             = 4
	fTxUplinkSpreading            = 5
	fTxUplinkPayload              = 6
)

// Field numbers for LongFiResp / LongFiRxPacket.
const (
	fLongFiRespID       = 1
	fLongFiRespRx       = 2
	fLongFiRespTxStatus = 3

	fLFRxCRCCheck    = 1
	fLFRxTimestampUs = 2
	fLFRxRSSI        = 3
	fLFRxSNR         = 4
	fLFRxOUI         = 5
	fLFRxDeviceID    = 6
	fLFRxFingerprint = 7
	fLFRxSequence    = 8
	fLFRxSpreading   = 9
	fLFRxPayload     = 10
	fLFRxTagBits     = 11
)

// --- RadioReq -----------------------------------------------------------

// TxReqWire is the on-wire TxReq shape.
type TxReqWire struct {
	FreqHz         uint32
	Radio          radio.RadioIndex
	PowerDBm       int32
	Bandwidth      radio.Bandwidth
	Spreading      radio.SpreadingFactor
	CodeRate       radio.CodeRate
	InvertPolarity bool
	OmitCRC        bool
	ImplicitHeader bool
	Payload        []byte
}

// RadioReq is the decoded Radio-channel request envelope.
type RadioReq struct {
	ID int
	Tx *TxReqWire
}

func marshalTxReq(t *TxReqWire) []byte {
	var b []byte
	b = appendVarintField(b, fTxReqFreq, uint64(t.FreqHz))
	b = appendVarintField(b, fTxReqRadio, uint64(t.Radio))
	b = appendVarintField(b, fTxReqPower, uint64(protowire.EncodeZigZag(int64(t.PowerDBm))))
	b = appendVarintField(b, fTxReqBandwidth, uint64(t.Bandwidth))
	b = appendVarintField(b, fTxReqSpreading, uint64(t.Spreading))
	b = appendVarintField(b, fTxReqCodeRate, uint64(t.CodeRate))
	b = appendBoolField(b, fTxReqInvertPolarity, t.InvertPolarity)
	b = appendBoolField(b, fTxReqOmitCRC, t.OmitCRC)
	b = appendBoolField(b, fTxReqImplicitHeader, t.ImplicitHeader)
	b = appendBytesField(b, fTxReqPayload, t.Payload)
	return b
}

func unmarshalTxReq(b []byte) (*TxReqWire, error) {
	t := &TxReqWire{}
	return t, walkFields(b, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fTxReqFreq:
			t.FreqHz = uint32(v.varint)
		case fTxReqRadio:
			t.Radio = radio.RadioIndex(v.varint)
		case fTxReqPower:
			t.PowerDBm = int32(protowire.DecodeZigZag(v.varint))
		case fTxReqBandwidth:
			t.Bandwidth = radio.Bandwidth(v.varint)
		case fTxReqSpreading:
			t.Spreading = radio.SpreadingFactor(v.varint)
		case fTxReqCodeRate:
			t.CodeRate = radio.CodeRate(v.varint)
		case fTxReqInvertPolarity:
			t.InvertPolarity = v.varint != 0
		case fTxReqOmitCRC:
			t.OmitCRC = v.varint != 0
		case fTxReqImplicitHeader:
			t.ImplicitHeader = v.varint != 0
		case fTxReqPayload:
			t.Payload = v.bytes
		}
		return nil
	})
}

// EncodeRadioReq marshals a Radio-channel request envelope.
func EncodeRadioReq(id int, tx *TxReqWire) []byte {
	var b []byte
	b = appendVarintField(b, fRadioReqID, uint64(id))
	if tx != nil {
		b = appendMessageField(b, fRadioReqTx, marshalTxReq(tx))
	}
	return b
}

// DecodeRadioReq parses a Radio-channel request envelope.
func DecodeRadioReq(buf []byte) (*RadioReq, error) {
	req := &RadioReq{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fRadioReqID:
			req.ID = int(v.varint)
		case fRadioReqTx:
			tx, err := unmarshalTxReq(v.bytes)
			if err != nil {
				return err
			}
			req.Tx = tx
		}
		return nil
	})
	return req, err
}

// EncodeRadioTxReq is a convenience wrapper used by the LongFi coordinator
// to turn an internal radio.TxPacket built by the sender into the wire
// request.
func EncodeRadioTxReq(id int, pkt *radio.TxPacket) []byte {
	return EncodeRadioReq(id, &TxReqWire{
		FreqHz:         pkt.FreqHz,
		Radio:          pkt.Radio,
		PowerDBm:       int32(pkt.PowerDBm),
		Bandwidth:      pkt.Bandwidth,
		Spreading:      pkt.Spreading,
		CodeRate:       pkt.CodeRate,
		InvertPolarity: pkt.InvertPolarity,
		OmitCRC:        pkt.OmitCRC,
		ImplicitHeader: pkt.ImplicitHeader,
		Payload:        pkt.Payload,
	})
}

// --- RadioResp ------------------------------------------------------------

// RxPacketWire is the on-wire RxPacket shape.
type RxPacketWire struct {
	FreqHz      uint32
	IFChain     uint32
	CRCCheck    radio.CRCOutcome
	TimestampUs uint32
	AbsSec      int64
	AbsNsec     int32
	GPSDerived  bool
	Radio       radio.RadioIndex
	Bandwidth   radio.Bandwidth
	Spreading   radio.SpreadingFactor
	CodeRate    radio.CodeRate
	RSSI        float32
	SNRMean     float32
	SNRMin      float32
	SNRMax      float32
	Payload     []byte
}

// RadioResp is the decoded Radio-channel response envelope.
type RadioResp struct {
	ID        int
	TxSuccess *bool
	RxPacket  *RxPacketWire
	TxAck     *bool // alias of TxSuccess for coordinator dispatch clarity
	ParseErr  []byte
}

func marshalRxPacket(p *RxPacketWire) []byte {
	var b []byte
	b = appendVarintField(b, fRxFreq, uint64(p.FreqHz))
	b = appendVarintField(b, fRxIFChain, uint64(p.IFChain))
	// fRxCRCCheck must always be emitted, even when false: appendBoolField's
	// omit-on-false (proto3 default-value elision) would otherwise make a
	// CRCFail packet indistinguishable on the wire from one that never set
	// the field, and the decoder's Go zero value for CRCOutcome is CRCNone,
	// not CRCFail.
	crcCheckBit := uint64(0)
	if p.CRCCheck != radio.CRCFail {
		crcCheckBit = 1
	}
	b = appendVarintField(b, fRxCRCCheck, crcCheckBit)
	if p.GPSDerived {
		b = appendVarintField(b, fRxAbsSec, uint64(p.AbsSec))
		b = appendVarintField(b, fRxAbsNsec, uint64(p.AbsNsec))
		b = appendBoolField(b, fRxGPSDerived, true)
	} else {
		b = appendVarintField(b, fRxTimestampUs, uint64(p.TimestampUs))
	}
	b = appendVarintField(b, fRxRadio, uint64(p.Radio))
	b = appendVarintField(b, fRxBandwidth, uint64(p.Bandwidth))
	b = appendVarintField(b, fRxSpreading, uint64(p.Spreading))
	b = appendVarintField(b, fRxCodeRate, uint64(p.CodeRate))
	b = appendFixed32Field(b, fRxRSSI, math.Float32bits(p.RSSI))
	b = appendFixed32Field(b, fRxSNRMean, math.Float32bits(p.SNRMean))
	b = appendFixed32Field(b, fRxSNRMin, math.Float32bits(p.SNRMin))
	b = appendFixed32Field(b, fRxSNRMax, math.Float32bits(p.SNRMax))
	b = appendBytesField(b, fRxPayload, p.Payload)
	return b
}

func unmarshalRxPacket(b []byte) (*RxPacketWire, error) {
	p := &RxPacketWire{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fRxFreq:
			p.FreqHz = uint32(v.varint)
		case fRxIFChain:
			p.IFChain = uint32(v.varint)
		case fRxCRCCheck:
			if v.varint != 0 {
				p.CRCCheck = radio.CRCPass
			} else {
				p.CRCCheck = radio.CRCFail
			}
		case fRxTimestampUs:
			p.TimestampUs = uint32(v.varint)
		case fRxAbsSec:
			p.AbsSec = int64(v.varint)
		case fRxAbsNsec:
			p.AbsNsec = int32(v.varint)
		case fRxGPSDerived:
			p.GPSDerived = v.varint != 0
		case fRxRadio:
			p.Radio = radio.RadioIndex(v.varint)
		case fRxBandwidth:
			p.Bandwidth = radio.Bandwidth(v.varint)
		case fRxSpreading:
			p.Spreading = radio.SpreadingFactor(v.varint)
		case fRxCodeRate:
			p.CodeRate = radio.CodeRate(v.varint)
		case fRxRSSI:
			p.RSSI = math.Float32frombits(v.fixed32)
		case fRxSNRMean:
			p.SNRMean = math.Float32frombits(v.fixed32)
		case fRxSNRMin:
			p.SNRMin = math.Float32frombits(v.fixed32)
		case fRxSNRMax:
			p.SNRMax = math.Float32frombits(v.fixed32)
		case fRxPayload:
			p.Payload = v.bytes
		}
		return nil
	})
	return p, err
}

// EncodeRadioRxResp encodes a received-packet response, applying the
// timestamp translation rule: microseconds since start by default, or
// absolute (sec, nsec) plus a GPS-derived flag when a GPS
// reference is available.
func EncodeRadioRxResp(id int, pkt radio.RxPacket, abs *timestamppb.Timestamp) []byte {
	w := &RxPacketWire{
		FreqHz:      pkt.FreqHz,
		IFChain:     uint32(pkt.IFChain),
		CRCCheck:    pkt.CRCCheck,
		TimestampUs: pkt.TimestampUs,
		Radio:       pkt.Radio,
		Bandwidth:   pkt.Bandwidth,
		Spreading:   pkt.Spreading,
		CodeRate:    pkt.CodeRate,
		RSSI:        pkt.RSSI,
		SNRMean:     pkt.SNRMean,
		SNRMin:      pkt.SNRMin,
		SNRMax:      pkt.SNRMax,
		Payload:     pkt.Payload,
	}
	if abs != nil {
		w.GPSDerived = true
		w.AbsSec = abs.Seconds
		w.AbsNsec = abs.Nanos
	}
	var b []byte
	b = appendVarintField(b, fRadioRespID, uint64(id))
	b = appendMessageField(b, fRadioRespRxPacket, marshalRxPacket(w))
	return b
}

// EncodeRadioTxStatusResp encodes a tx-success/failure response.
func EncodeRadioTxStatusResp(id int, success bool) []byte {
	var inner []byte
	inner = appendBoolField(inner, fTxStatusSuccess, success)
	var b []byte
	b = appendVarintField(b, fRadioRespID, uint64(id))
	b = appendMessageField(b, fRadioRespTxStatus, inner)
	return b
}

// EncodeRadioEmptyResp encodes a response with only an id and no body, for
// an unrecognized/empty request one-of.
func EncodeRadioEmptyResp(id int) []byte {
	var b []byte
	b = appendVarintField(b, fRadioRespID, uint64(id))
	return b
}

// EncodeRadioParseErrResp encodes a parse-error response (id is always 0:
// the request could not be decoded far enough to recover one).
func EncodeRadioParseErrResp(original []byte) []byte {
	var b []byte
	b = appendVarintField(b, fRadioRespID, 0)
	b = appendBytesField(b, fRadioRespParseErr, original)
	return b
}

// DecodeRadioResp parses a Radio-channel response envelope, used by the
// LongFi coordinator when reading from the radio-facing socket.
func DecodeRadioResp(buf []byte) (*RadioResp, error) {
	resp := &RadioResp{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fRadioRespID:
			resp.ID = int(v.varint)
		case fRadioRespTxStatus:
			ok := false
			err := walkFields(v.bytes, func(n protowire.Number, _ protowire.Type, vv fieldValue) error {
				if n == fTxStatusSuccess {
					ok = vv.varint != 0
				}
				return nil
			})
			if err != nil {
				return err
			}
			resp.TxSuccess = &ok
			resp.TxAck = &ok
		case fRadioRespRxPacket:
			p, err := unmarshalRxPacket(v.bytes)
			if err != nil {
				return err
			}
			resp.RxPacket = p
		case fRadioRespParseErr:
			resp.ParseErr = v.bytes
		}
		return nil
	})
	return resp, err
}

// --- LongFiReq --------------------------------------------------------

// LongFiTxUplinkWire is the on-wire LongFiTxUplink shape.
type LongFiTxUplinkWire struct {
	DisableEncoding      bool
	DisableFragmentation bool
	OUI                  uint32
	DeviceID             uint16
	Spreading            radio.SpreadingFactor
	Payload              []byte
}

// LongFiReq is the decoded LongFi-channel request envelope.
type LongFiReq struct {
	ID       uint32
	TxUplink *LongFiTxUplinkWire
}

// EncodeLongFiReq marshals a LongFi-channel request envelope.
func EncodeLongFiReq(id uint32, u *LongFiTxUplinkWire) []byte {
	var b []byte
	b = appendVarintField(b, fLongFiReqID, uint64(id))
	if u != nil {
		var inner []byte
		inner = appendBoolField(inner, fTxUplinkDisableEncoding, u.DisableEncoding)
		inner = appendBoolField(inner, fTxUplinkDisableFragmentation, u.DisableFragmentation)
		inner = appendVarintField(inner, fTxUplinkOUI, uint64(u.OUI))
		inner = appendVarintField(inner, fTxUplinkDeviceID, uint64(u.DeviceID))
		inner = appendVarintField(inner, fTxUplinkSpreading, uint64(u.Spreading))
		inner = appendBytesField(inner, fTxUplinkPayload, u.Payload)
		b = appendMessageField(b, fLongFiReqTxUplink, inner)
	}
	return b
}

// DecodeLongFiReq parses a LongFi-channel request envelope.
func DecodeLongFiReq(buf []byte) (*LongFiReq, error) {
	req := &LongFiReq{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fLongFiReqID:
			req.ID = uint32(v.varint)
		case fLongFiReqTxUplink:
			u := &LongFiTxUplinkWire{}
			err := walkFields(v.bytes, func(n protowire.Number, _ protowire.Type, vv fieldValue) error {
				switch n {
				case fTxUplinkDisableEncoding:
					u.DisableEncoding = vv.varint != 0
				case fTxUplinkDisableFragmentation:
					u.DisableFragmentation = vv.varint != 0
				case fTxUplinkOUI:
					u.OUI = uint32(vv.varint)
				case fTxUplinkDeviceID:
					u.DeviceID = uint16(vv.varint)
				case fTxUplinkSpreading:
					u.Spreading = radio.SpreadingFactor(vv.varint)
				case fTxUplinkPayload:
					u.Payload = vv.bytes
				}
				return nil
			})
			if err != nil {
				return err
			}
			req.TxUplink = u
		}
		return nil
	})
	return req, err
}

// --- LongFiResp -----------------------------------------------------------

// EncodeLongFiRxResp encodes a reassembled LongFi packet as a LongFiResp.
func EncodeLongFiRxResp(id uint32, pkt *longfi.Packet) []byte {
	var tagBits uint64
	for i, q := range pkt.Quality {
		if q != longfi.CrcOk {
			tagBits |= 1 << uint(i%64)
		}
	}
	var inner []byte
	inner = appendBoolField(inner, fLFRxCRCCheck, pkt.CRCOk)
	inner = appendVarintField(inner, fLFRxTimestampUs, uint64(pkt.TimestampUs))
	inner = appendFixed32Field(inner, fLFRxRSSI, math.Float32bits(pkt.RSSI))
	inner = appendFixed32Field(inner, fLFRxSNR, math.Float32bits(pkt.SNR))
	inner = appendVarintField(inner, fLFRxOUI, uint64(pkt.OUI))
	inner = appendVarintField(inner, fLFRxDeviceID, uint64(pkt.DeviceID))
	inner = appendVarintField(inner, fLFRxFingerprint, uint64(pkt.Fingerprint))
	inner = appendVarintField(inner, fLFRxSequence, uint64(pkt.Sequence))
	inner = appendVarintField(inner, fLFRxSpreading, uint64(pkt.Spreading))
	inner = appendBytesField(inner, fLFRxPayload, pkt.Payload)
	inner = appendVarintField(inner, fLFRxTagBits, tagBits)

	var b []byte
	b = appendVarintField(b, fLongFiRespID, uint64(id))
	b = appendMessageField(b, fLongFiRespRx, inner)
	return b
}

// LongFiRxPacketWire is the on-wire LongFiRxPacket shape.
type LongFiRxPacketWire struct {
	CRCCheck    bool
	TimestampUs uint32
	RSSI        float32
	SNR         float32
	OUI         uint32
	DeviceID    uint16
	Fingerprint uint32
	Sequence    uint32
	Spreading   radio.SpreadingFactor
	Payload     []byte
	TagBits     uint64
}

// LongFiResp is the decoded LongFi-channel response envelope.
type LongFiResp struct {
	ID       uint32
	Rx       *LongFiRxPacketWire
	TxStatus *bool
}

// DecodeLongFiResp parses a LongFi-channel response envelope, used by the
// downstream application side of the coordinator's client socket.
func DecodeLongFiResp(buf []byte) (*LongFiResp, error) {
	resp := &LongFiResp{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v fieldValue) error {
		switch num {
		case fLongFiRespID:
			resp.ID = uint32(v.varint)
		case fLongFiRespRx:
			p := &LongFiRxPacketWire{}
			err := walkFields(v.bytes, func(n protowire.Number, _ protowire.Type, vv fieldValue) error {
				switch n {
				case fLFRxCRCCheck:
					p.CRCCheck = vv.varint != 0
				case fLFRxTimestampUs:
					p.TimestampUs = uint32(vv.varint)
				case fLFRxRSSI:
					p.RSSI = math.Float32frombits(vv.fixed32)
				case fLFRxSNR:
					p.SNR = math.Float32frombits(vv.fixed32)
				case fLFRxOUI:
					p.OUI = uint32(vv.varint)
				case fLFRxDeviceID:
					p.DeviceID = uint16(vv.varint)
				case fLFRxFingerprint:
					p.Fingerprint = uint32(vv.varint)
				case fLFRxSequence:
					p.Sequence = uint32(vv.varint)
				case fLFRxSpreading:
					p.Spreading = radio.SpreadingFactor(vv.varint)
				case fLFRxPayload:
					p.Payload = vv.bytes
				case fLFRxTagBits:
					p.TagBits = vv.varint
				}
				return nil
			})
			if err != nil {
				return err
			}
			resp.Rx = p
		case fLongFiRespTxStatus:
			ok := false
			err := walkFields(v.bytes, func(n protowire.Number, _ protowire.Type, vv fieldValue) error {
				if n == fTxStatusSuccess {
					ok = vv.varint != 0
				}
				return nil
			})
			if err != nil {
				return err
			}
			resp.TxStatus = &ok
		}
		return nil
	})
	return resp, err
}

// EncodeLongFiTxStatusResp encodes a multi-fragment-send completion report.
func EncodeLongFiTxStatusResp(id uint32, success bool) []byte {
	var inner []byte
	inner = appendBoolField(inner, fTxStatusSuccess, success)
	var b []byte
	b = appendVarintField(b, fLongFiRespID, uint64(id))
	b = appendMessageField(b, fLongFiRespTxStatus, inner)
	return b
}

// --- low-level protowire helpers -----------------------------------------

type fieldValue struct {
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendFixed32Field(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessageField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// walkFields iterates every top-level field in buf, dispatching to fn with
// whichever fieldValue member matches typ.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, v fieldValue) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("wire: invalid tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		var fv fieldValue
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return fmt.Errorf("wire: invalid varint: %w", protowire.ParseError(n))
			}
			fv.varint = v
			buf = buf[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return fmt.Errorf("wire: invalid fixed32: %w", protowire.ParseError(n))
			}
			fv.fixed32 = v
			buf = buf[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(buf)
			if n < 0 {
				return fmt.Errorf("wire: invalid fixed64: %w", protowire.ParseError(n))
			}
			fv.fixed64 = v
			buf = buf[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return fmt.Errorf("wire: invalid bytes: %w", protowire.ParseError(n))
			}
			fv.bytes = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return fmt.Errorf("wire: invalid field: %w", protowire.ParseError(n))
			}
			buf = buf[n:]
			continue
		}
		if err := fn(num, typ, fv); err != nil {
			return err
		}
	}
	return nil
}
