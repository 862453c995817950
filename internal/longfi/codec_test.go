package longfi

import (
	"bytes"
	"testing"

	"github.com/ccroswhite/concentrate/internal/radio"
)

func TestLegacyCodecRoutesToParserAndSender(t *testing.T) {
	var c LegacyCodec

	payload := []byte{0, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x42}
	out := c.ParseRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: payload})
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed packet, got %v", out.Kind)
	}
	if !bytes.Equal(out.Packet.Payload, []byte{0x42}) {
		t.Errorf("payload = %x, want 42", out.Packet.Payload)
	}

	tx, err := c.Send(TxUplinkRequest{Spreading: radio.SF10, Payload: []byte("hi")})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tx == nil || tx.Packet.Payload[0] != 0 {
		t.Fatalf("expected a single-fragment radio request, got %+v", tx)
	}
}

func TestExternalCodecFailsClosedWithoutDelegate(t *testing.T) {
	var c ExternalCodec

	out := c.ParseRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}})
	if out.Kind != OutcomeNone {
		t.Errorf("expected no output without a delegate, got %v", out.Kind)
	}
	if _, err := c.Send(TxUplinkRequest{Payload: []byte("x")}); err == nil {
		t.Errorf("expected Send to fail without a delegate")
	}
	if o := c.TransmitComplete(); o.Radio != nil || o.Client != nil {
		t.Errorf("expected empty outcome, got %+v", o)
	}
}

type fakeMonolithicCodec struct{}

func (fakeMonolithicCodec) DecodeMonolithic(payload []byte) (*Packet, error) {
	return &Packet{OUI: 0xAA, Payload: payload}, nil
}

func (fakeMonolithicCodec) EncodeMonolithic(req TxUplinkRequest) ([]byte, error) {
	return req.Payload, nil
}

func TestExternalCodecDelegates(t *testing.T) {
	c := ExternalCodec{Delegate: fakeMonolithicCodec{}}

	out := c.ParseRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: []byte{9, 9}, RSSI: -90, Spreading: radio.SF9})
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed packet, got %v", out.Kind)
	}
	if out.Packet.OUI != 0xAA || out.Packet.RSSI != -90 || out.Packet.Spreading != radio.SF9 {
		t.Errorf("delegate fields not carried through: %+v", out.Packet)
	}
	if !out.Packet.CRCOk {
		t.Errorf("expected CRCOk=true for a passing CRC check")
	}

	tx, err := c.Send(TxUplinkRequest{Spreading: radio.SF10, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(tx.Packet.Payload, []byte{1, 2, 3}) {
		t.Errorf("monolithic payload = %x, want 010203", tx.Packet.Payload)
	}
}
