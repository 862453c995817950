package gpstime

import (
	"testing"
	"time"
)

func buildNavTimeGPSFrame(iTOW uint32, week int16, leapS int8) []byte {
	frame := []byte{0xB5, 0x62, classNav, idNavTimeGPS, 16, 0}
	le32 := func(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
	le16 := func(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
	frame = append(frame, le32(iTOW)...)
	frame = append(frame, le32(0)...) // fTOW
	frame = append(frame, le16(uint16(week))...)
	frame = append(frame, byte(leapS), 0x01) // leapS, valid
	frame = append(frame, le32(0)...)        // tAcc
	return frame
}

func TestIsNavTimeGPS(t *testing.T) {
	frame := buildNavTimeGPSFrame(1000, 2200, 18)
	if !IsNavTimeGPS(frame) {
		t.Fatalf("expected frame to be recognized as NAV-TIMEGPS")
	}
	other := []byte{0xB5, 0x62, 0x01, 0x21, 0, 0}
	if IsNavTimeGPS(other) {
		t.Fatalf("expected different message id not to be recognized")
	}
}

func TestParseNavTimeGPS(t *testing.T) {
	frame := buildNavTimeGPSFrame(123456, 2200, 18)
	msg, err := ParseNavTimeGPS(frame)
	if err != nil {
		t.Fatalf("ParseNavTimeGPS: %v", err)
	}
	if msg.ITOW != 123456 {
		t.Errorf("ITOW = %d, want 123456", msg.ITOW)
	}
	if msg.Week != 2200 {
		t.Errorf("Week = %d, want 2200", msg.Week)
	}
	if msg.LeapS != 18 {
		t.Errorf("LeapS = %d, want 18", msg.LeapS)
	}
}

func TestReferenceConvertRequiresEstablishedReference(t *testing.T) {
	var ref Reference
	if ref.Established() {
		t.Fatalf("zero-value reference should not be established")
	}
	if _, ok := ref.ToAbsolute(1000); ok {
		t.Fatalf("expected ok=false before establishment")
	}

	msg, _ := ParseNavTimeGPS(buildNavTimeGPSFrame(0, 2200, 18))
	times := TimesFromNavTimeGPS(msg)
	ref.Establish(1_000_000, times)

	abs, ok := ref.ToAbsolute(1_001_000)
	if !ok {
		t.Fatalf("expected ok=true after establishment")
	}
	if got := abs.Sub(times.UTC); got != time.Millisecond {
		t.Errorf("expected 1ms advance, got %v", got)
	}
}
