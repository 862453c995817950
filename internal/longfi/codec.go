package longfi

import (
	"fmt"

	"github.com/ccroswhite/concentrate/internal/radio"
)

// Codec selects between the legacy length-prefixed parser/sender and an
// externalized datagram codec; configuration picks which path a running
// coordinator uses.
//
// The coordinator calls all four methods: ParseRadioRx and HandleTimeout
// on the receive side, Send and TransmitComplete on the transmit side;
// reassembly and pacing state is owned by whichever implementation is
// selected.
type Codec interface {
	ParseRadioRx(rx RadioRx) ParseOutcome
	HandleTimeout(packetID uint8) ParseOutcome
	Send(req TxUplinkRequest) (*TxRequest, error)
	TransmitComplete() SendOutcome
}

// LegacyCodec is the length-prefixed fallback framing path.
type LegacyCodec struct {
	Parser Parser
	Sender Sender
}

func (c *LegacyCodec) ParseRadioRx(rx RadioRx) ParseOutcome { return c.Parser.HandleRadioRx(rx) }
func (c *LegacyCodec) HandleTimeout(id uint8) ParseOutcome  { return c.Parser.HandleTimeout(id) }
func (c *LegacyCodec) Send(req TxUplinkRequest) (*TxRequest, error) {
	return c.Sender.Send(req)
}
func (c *LegacyCodec) TransmitComplete() SendOutcome { return c.Sender.TransmitComplete() }

// ExternalCodec delegates classification and field parsing to an external
// datagram codec.
type ExternalCodec struct {
	// Delegate, when non-nil, performs the actual Monolithic-datagram
	// decode/encode. A nil Delegate causes every call to fail closed,
	// which is the correct behavior until a real codec is wired in.
	Delegate MonolithicCodec
}

// MonolithicCodec is the narrow interface the vendored datagram codec
// would need to satisfy.
type MonolithicCodec interface {
	DecodeMonolithic(payload []byte) (*Packet, error)
	EncodeMonolithic(req TxUplinkRequest) ([]byte, error)
}

func (c *ExternalCodec) ParseRadioRx(rx RadioRx) ParseOutcome {
	if c.Delegate == nil {
		return ParseOutcome{Kind: OutcomeNone}
	}
	pkt, err := c.Delegate.DecodeMonolithic(rx.Payload)
	if err != nil {
		return ParseOutcome{Kind: OutcomeNone}
	}
	pkt.TimestampUs = rx.TimestampUs
	pkt.RSSI = rx.RSSI
	pkt.SNR = rx.SNR
	pkt.Spreading = rx.Spreading
	pkt.CRCOk = rx.CRCCheck != radio.CRCFail
	return ParseOutcome{Kind: OutcomeCompleted, Packet: pkt}
}

func (c *ExternalCodec) HandleTimeout(uint8) ParseOutcome { return ParseOutcome{Kind: OutcomeNone} }

func (c *ExternalCodec) Send(req TxUplinkRequest) (*TxRequest, error) {
	if c.Delegate == nil {
		return nil, fmt.Errorf("longfi: external codec has no delegate configured")
	}
	body, err := c.Delegate.EncodeMonolithic(req)
	if err != nil {
		return nil, fmt.Errorf("longfi: external codec encode: %w", err)
	}
	return buildTxRequest(body, req.Spreading)
}

func (c *ExternalCodec) TransmitComplete() SendOutcome { return SendOutcome{} }
