package longfi

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/ccroswhite/concentrate/internal/radio"
)

// Uplink channel plan: eight channels derived from two radio centers in
// 200kHz steps: radio 1's center and two steps below it, radio 2's center
// and two steps on either side of it.
const (
	radio1Hz      = 920_600_000
	radio2Hz      = 916_600_000
	freqSpacingHz = 200_000
)

// UplinkChannels is the fixed 8-entry frequency table fragments are drawn
// from uniformly at random.
var UplinkChannels = [8]uint32{
	radio1Hz - 2*freqSpacingHz,
	radio1Hz - freqSpacingHz,
	radio1Hz,
	radio2Hz - 2*freqSpacingHz,
	radio2Hz - freqSpacingHz,
	radio2Hz,
	radio2Hz + freqSpacingHz,
	radio2Hz + 2*freqSpacingHz,
}

// fragmentCapacity returns the gross per-fragment payload capacity for a
// spreading factor: SF7=32, SF8=32, SF9=24, SF10=24.
func fragmentCapacity(sf radio.SpreadingFactor) int {
	switch sf {
	case radio.SF7, radio.SF8:
		return 32
	case radio.SF9, radio.SF10:
		return 24
	default:
		return 24
	}
}

// TxRequest is an outbound radio transmit request produced by the sender.
// It carries only the radio packet; the client request id of an in-flight
// send is kept by the Sender.
type TxRequest struct {
	Packet *radio.TxPacket
}

// SendOutcome is emitted by the sender: either a radio-bound fragment, a
// client-facing completion, or nothing.
type SendOutcome struct {
	Radio  *TxRequest
	Client *ClientResponse
}

// ClientResponse reports completion of a multi-fragment send back to the
// original requester.
type ClientResponse struct {
	RequestID uint32
	Success   bool
}

type pendingSend struct {
	requestID uint32
	spreading radio.SpreadingFactor
	queue     [][]byte // pre-built continuation header+payload bytes, in order
}

// Sender holds at most one in-flight multi-fragment send.
type Sender struct {
	pending *pendingSend
}

// TxUplinkRequest is the caller-supplied user datagram to send.
type TxUplinkRequest struct {
	RequestID            uint32
	OUI                  uint32
	DeviceID             uint16
	Tag                  uint16
	Spreading            radio.SpreadingFactor
	Payload              []byte
	DisableFragmentation bool
}

// Send begins (or completes in one shot) an uplink send, returning the
// first radio transmit request immediately.
func (s *Sender) Send(req TxUplinkRequest) (*TxRequest, error) {
	sf := req.Spreading
	if sf == radio.SFUndefined {
		sf = radio.SF10
	}
	capacity := fragmentCapacity(sf)

	if req.DisableFragmentation || len(req.Payload) <= capacity-singleFragmentHeaderLen {
		body := encodeSingleFragmentHeader(singleFragmentHeader{
			OUI:      req.OUI,
			DeviceID: req.DeviceID,
			Tag:      req.Tag,
		})
		body = append(body, req.Payload...)
		return buildTxRequest(body, sf)
	}

	packetID, err := randomNonZeroByte()
	if err != nil {
		return nil, fmt.Errorf("longfi: generating packet id: %w", err)
	}

	firstCap := capacity - firstOfManyHeaderLen
	contCap := capacity - continuationHeaderLen

	remaining := req.Payload[firstCap:]
	n := 1
	for len(remaining) > 0 {
		take := contCap
		if take > len(remaining) {
			take = len(remaining)
		}
		n++
		remaining = remaining[take:]
	}

	fragment0 := encodeFirstOfManyHeader(firstOfManyHeader{
		PacketID:     packetID,
		NumFragments: uint8(n),
		OUI:          req.OUI,
		DeviceID:     req.DeviceID,
		Tag:          req.Tag,
	})
	fragment0 = append(fragment0, req.Payload[:firstCap]...)

	var queue [][]byte
	remaining = req.Payload[firstCap:]
	for idx := uint8(1); len(remaining) > 0; idx++ {
		take := contCap
		if take > len(remaining) {
			take = len(remaining)
		}
		frag := encodeContinuationHeader(continuationHeader{
			PacketID:      packetID,
			FragmentIndex: idx,
			Tag:           req.Tag,
		})
		frag = append(frag, remaining[:take]...)
		queue = append(queue, frag)
		remaining = remaining[take:]
	}

	first, err := buildTxRequest(fragment0, sf)
	if err != nil {
		return nil, err
	}
	s.pending = &pendingSend{requestID: req.RequestID, spreading: sf, queue: queue}
	return first, nil
}

// TransmitComplete handles a radio transmit-complete acknowledgment.
// Spurious events with no send in flight produce no output.
func (s *Sender) TransmitComplete() SendOutcome {
	if s.pending == nil {
		return SendOutcome{}
	}
	if len(s.pending.queue) == 0 {
		// The final queued fragment was sent on the previous event; this
		// ack closes the send out.
		resp := &ClientResponse{RequestID: s.pending.requestID, Success: true}
		s.pending = nil
		return SendOutcome{Client: resp}
	}
	next := s.pending.queue[0]
	s.pending.queue = s.pending.queue[1:]
	tx, err := buildTxRequest(next, s.pending.spreading)
	if err != nil {
		// Queued fragments are sized within the per-fragment capacity, so
		// this cannot trip the payload bound; fail the send out if it does.
		resp := &ClientResponse{RequestID: s.pending.requestID, Success: false}
		s.pending = nil
		return SendOutcome{Client: resp}
	}
	return SendOutcome{Radio: tx}
}

func buildTxRequest(payload []byte, sf radio.SpreadingFactor) (*TxRequest, error) {
	freq := UplinkChannels[rand.Intn(len(UplinkChannels))]
	pkt, err := radio.NewTxPacket(radio.TxPacket{
		FreqHz:    freq,
		Radio:     radio.Radio0,
		PowerDBm:  28,
		Bandwidth: radio.BW125KHZ,
		Spreading: sf,
		CodeRate:  radio.CR4_5,
		Mode:      radio.TxImmediate,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	return &TxRequest{Packet: pkt}, nil
}

func randomNonZeroByte() (byte, error) {
	for i := 0; i < 32; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return 0, err
		}
		b := id[0]
		if b != 0 {
			return b, nil
		}
	}
	return 0, fmt.Errorf("failed to generate a non-zero packet id")
}
