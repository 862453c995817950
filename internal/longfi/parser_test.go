package longfi

import (
	"bytes"
	"testing"

	"github.com/ccroswhite/concentrate/internal/radio"
)

func TestParserSingleFragmentReceive(t *testing.T) {
	var p Parser
	payload := []byte{0, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x01, 0x02, 0x03}
	outcome := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: payload})

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected OutcomeCompleted, got %v", outcome.Kind)
	}
	pkt := outcome.Packet
	if pkt.OUI != 0x12345678 {
		t.Errorf("OUI = %#x, want 0x12345678", pkt.OUI)
	}
	if pkt.DeviceID != 0xABCD {
		t.Errorf("DeviceID = %#x, want 0xABCD", pkt.DeviceID)
	}
	if pkt.Fingerprint != 0xBEEF {
		t.Errorf("Fingerprint = %#x, want 0xBEEF", pkt.Fingerprint)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Payload = %v, want [1 2 3]", pkt.Payload)
	}
	if len(pkt.Quality) != 1 || pkt.Quality[0] != CrcOk {
		t.Errorf("Quality = %v, want [CrcOk]", pkt.Quality)
	}
}

func TestParserTwoFragmentReceiveInOrder(t *testing.T) {
	var p Parser
	first := []byte{0xBB, 0, 2, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x10, 0x11}
	out1 := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: first})
	if out1.Kind != OutcomeBegin || out1.PacketID != 0xBB {
		t.Fatalf("expected begin for packet 0xBB, got %v id=%d", out1.Kind, out1.PacketID)
	}

	second := []byte{0xBB, 1, 0x00, 0x00, 0x20, 0x21, 0x22}
	out2 := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: second})
	if out2.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %v", out2.Kind)
	}
	pkt := out2.Packet
	if pkt.PacketID != 0xBB {
		t.Errorf("PacketID = %#x, want 0xBB", pkt.PacketID)
	}
	want := []byte{0x10, 0x11, 0x20, 0x21, 0x22}
	if !bytes.Equal(pkt.Payload, want) {
		t.Errorf("Payload = %v, want %v", pkt.Payload, want)
	}
	if len(pkt.Quality) != 2 || pkt.Quality[0] != CrcOk || pkt.Quality[1] != CrcOk {
		t.Errorf("Quality = %v, want [CrcOk CrcOk]", pkt.Quality)
	}
	if !pkt.CRCOk {
		t.Errorf("CRCOk = false, want true")
	}
}

func TestParserMissingMiddleFragmentSynthesizesMissed(t *testing.T) {
	var p Parser
	first := []byte{0xBB, 0, 4, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x10, 0x11}
	p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: first})

	// Fragment index 3 arrives, though index 1 was expected: two Missed
	// marks synthesize for indices 1 and 2, then index 3 is appended,
	// closing the packet (numFragments=4: fragment 0 plus indices 1..3).
	jump := []byte{0xBB, 3, 0x30, 0x31}
	out := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: jump})
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %v", out.Kind)
	}
	pkt := out.Packet
	want := []Quality{CrcOk, Missed, Missed, CrcOk}
	if len(pkt.Quality) != len(want) {
		t.Fatalf("Quality = %v, want %v", pkt.Quality, want)
	}
	for i := range want {
		if pkt.Quality[i] != want[i] {
			t.Errorf("Quality[%d] = %v, want %v", i, pkt.Quality[i], want[i])
		}
	}
	if pkt.CRCOk {
		t.Errorf("CRCOk = true, want false (contains a Missed mark)")
	}
}

func TestParserTimeoutClosesOutstandingFragments(t *testing.T) {
	var p Parser
	first := []byte{0xCC, 0, 4, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x01}
	out := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: first})
	if out.Kind != OutcomeBegin {
		t.Fatalf("expected begin, got %v", out.Kind)
	}

	timeoutOut := p.HandleTimeout(0xCC)
	if timeoutOut.Kind != OutcomeCompleted {
		t.Fatalf("expected completed on timeout, got %v", timeoutOut.Kind)
	}
	want := []Quality{CrcOk, Missed, Missed, Missed}
	got := timeoutOut.Packet.Quality
	if len(got) != len(want) {
		t.Fatalf("Quality = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Quality[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// The table entry must not survive a timeout.
	again := p.HandleTimeout(0xCC)
	if again.Kind != OutcomeNone {
		t.Fatalf("expected no-op on second timeout for same id, got %v", again.Kind)
	}
}

func TestParserBelowMinimumLengthIgnored(t *testing.T) {
	var p Parser
	out := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: []byte{1, 2, 3}})
	if out.Kind != OutcomeNone {
		t.Fatalf("expected no-op for 3-byte payload, got %v", out.Kind)
	}
}

func TestParserStaleContinuationIgnored(t *testing.T) {
	var p Parser
	first := []byte{0xDD, 0, 3, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x01}
	p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: first})

	cont1 := []byte{0xDD, 1, 0x10, 0x00}
	p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: cont1})

	// Index 1 arrives again after expectedIndex has advanced to 2: must be
	// ignored per the monotonicity invariant.
	replay := []byte{0xDD, 1, 0xFF, 0xFF}
	out := p.HandleRadioRx(RadioRx{CRCCheck: radio.CRCPass, Payload: replay})
	if out.Kind != OutcomeNone {
		t.Fatalf("expected stale fragment to be ignored, got %v", out.Kind)
	}
}
