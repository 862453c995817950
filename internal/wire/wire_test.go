package wire

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ccroswhite/concentrate/internal/longfi"
	"github.com/ccroswhite/concentrate/internal/radio"
)

func TestRadioRxRespCRCCheckTranslation(t *testing.T) {
	// The wire carries crc_check as a bool: {NoCRC, Pass} encode true and
	// decode back as Pass; only Fail survives as Fail.
	cases := []struct {
		in   radio.CRCOutcome
		want radio.CRCOutcome
	}{
		{radio.CRCNone, radio.CRCPass},
		{radio.CRCFail, radio.CRCFail},
		{radio.CRCPass, radio.CRCPass},
	}
	for _, c := range cases {
		pkt := radio.RxPacket{
			FreqHz:      902700000,
			CRCCheck:    c.in,
			TimestampUs: 123,
			Radio:       radio.Radio0,
			Bandwidth:   radio.BW125KHZ,
			Spreading:   radio.SF10,
			CodeRate:    radio.CR4_5,
			Payload:     []byte("x"),
		}
		b := EncodeRadioRxResp(1, pkt, nil)
		resp, err := DecodeRadioResp(b)
		if err != nil {
			t.Fatalf("DecodeRadioResp: %v", err)
		}
		if resp.RxPacket == nil {
			t.Fatalf("expected RxPacket, got nil")
		}
		if resp.RxPacket.CRCCheck != c.want {
			t.Errorf("CRCCheck translation of %v: want %v, got %v", c.in, c.want, resp.RxPacket.CRCCheck)
		}
	}
}

func TestRadioRxRespGPSTimestamp(t *testing.T) {
	pkt := radio.RxPacket{FreqHz: 902700000, CRCCheck: radio.CRCPass, TimestampUs: 5555, Payload: []byte("x")}

	plain, err := DecodeRadioResp(EncodeRadioRxResp(1, pkt, nil))
	if err != nil {
		t.Fatalf("DecodeRadioResp: %v", err)
	}
	if plain.RxPacket.GPSDerived || plain.RxPacket.TimestampUs != 5555 {
		t.Errorf("expected a plain counter timestamp, got %+v", plain.RxPacket)
	}

	abs := &timestamppb.Timestamp{Seconds: 1700000000, Nanos: 250}
	gps, err := DecodeRadioResp(EncodeRadioRxResp(1, pkt, abs))
	if err != nil {
		t.Fatalf("DecodeRadioResp: %v", err)
	}
	p := gps.RxPacket
	if !p.GPSDerived || p.AbsSec != 1700000000 || p.AbsNsec != 250 {
		t.Errorf("expected a GPS-derived timestamp, got %+v", p)
	}
	if p.TimestampUs != 0 {
		t.Errorf("counter timestamp should be omitted when GPS-derived, got %d", p.TimestampUs)
	}
}

func TestLongFiRxRespRoundTrip(t *testing.T) {
	pkt := &longfi.Packet{
		OUI:         0x12345678,
		DeviceID:    0xABCD,
		Fingerprint: 0xBEEF,
		Payload:     []byte{1, 2, 3},
		TimestampUs: 99,
		RSSI:        -100,
		SNR:         5,
		Spreading:   radio.SF9,
		Quality:     []longfi.Quality{longfi.CrcOk, longfi.Missed, longfi.CrcOk},
		CRCOk:       false,
	}
	resp, err := DecodeLongFiResp(EncodeLongFiRxResp(3, pkt))
	if err != nil {
		t.Fatalf("DecodeLongFiResp: %v", err)
	}
	if resp.ID != 3 || resp.Rx == nil {
		t.Fatalf("expected rx response with id 3, got %+v", resp)
	}
	if resp.Rx.OUI != 0x12345678 || resp.Rx.DeviceID != 0xABCD || resp.Rx.Fingerprint != 0xBEEF {
		t.Errorf("unexpected identity fields: %+v", resp.Rx)
	}
	if !bytes.Equal(resp.Rx.Payload, []byte{1, 2, 3}) {
		t.Errorf("payload = %v, want [1 2 3]", resp.Rx.Payload)
	}
	if resp.Rx.CRCCheck {
		t.Errorf("expected crc_check=false for a trace with a Missed mark")
	}
	// Bit 1 marks the Missed fragment in the quality trace.
	if resp.Rx.TagBits != 0b010 {
		t.Errorf("TagBits = %b, want 010", resp.Rx.TagBits)
	}
}

func TestDecodeRadioRespTxStatus(t *testing.T) {
	for _, success := range []bool{true, false} {
		resp, err := DecodeRadioResp(EncodeRadioTxStatusResp(8, success))
		if err != nil {
			t.Fatalf("DecodeRadioResp: %v", err)
		}
		if resp.ID != 8 {
			t.Errorf("id = %d, want 8", resp.ID)
		}
		if resp.TxSuccess == nil || *resp.TxSuccess != success {
			t.Errorf("TxSuccess = %v, want %v", resp.TxSuccess, success)
		}
		if resp.TxAck == nil {
			t.Errorf("TxAck should alias TxSuccess")
		}
	}
}
