package longfi

import "github.com/ccroswhite/concentrate/internal/radio"

// entry is one in-progress reassembly, held in the 256-slot fragment table.
type entry struct {
	packetID      uint8
	oui           uint32
	deviceID      uint16
	tag           uint16
	numFragments  uint8
	expectedIndex uint8 // next continuation fragment index expected
	payload       []byte
	quality       []Quality
	timestampUs   uint32
	rssi          float32
	snr           float32
	spreading     radio.SpreadingFactor
}

// Parser reassembles multi-fragment LongFi datagrams keyed by packet id.
// It is the legacy-fallback length-prefixed parser; an ExternalCodec hook
// selects the release-path delegation instead (see codec.go).
type Parser struct {
	table [256]*entry
}

// HandleRadioRx processes one raw LoRa receive.
func (p *Parser) HandleRadioRx(rx RadioRx) ParseOutcome {
	role, err := classify(rx.Payload)
	if err != nil {
		return ParseOutcome{Kind: OutcomeNone}
	}

	crcQuality := CrcOk
	if rx.CRCCheck == radio.CRCFail {
		crcQuality = CrcFail
	}

	switch role {
	case roleSingle:
		h := decodeSingleFragmentHeader(rx.Payload)
		pkt := &Packet{
			OUI:         h.OUI,
			DeviceID:    h.DeviceID,
			Fingerprint: h.Tag,
			Payload:     append([]byte(nil), rx.Payload[singleFragmentHeaderLen:]...),
			TimestampUs: rx.TimestampUs,
			RSSI:        rx.RSSI,
			SNR:         rx.SNR,
			Spreading:   rx.Spreading,
			Quality:     []Quality{crcQuality},
			CRCOk:       crcQuality == CrcOk,
		}
		return ParseOutcome{Kind: OutcomeCompleted, Packet: pkt}

	case roleFirstOfMany:
		h := decodeFirstOfManyHeader(rx.Payload)
		e := &entry{
			packetID:      h.PacketID,
			oui:           h.OUI,
			deviceID:      h.DeviceID,
			tag:           h.Tag,
			numFragments:  h.NumFragments,
			expectedIndex: 1,
			payload:       append([]byte(nil), rx.Payload[firstOfManyHeaderLen:]...),
			quality:       []Quality{crcQuality},
			timestampUs:   rx.TimestampUs,
			rssi:          rx.RSSI,
			snr:           rx.SNR,
			spreading:     rx.Spreading,
		}
		p.table[h.PacketID] = e
		return ParseOutcome{Kind: OutcomeBegin, PacketID: h.PacketID}

	default: // roleContinuation
		h := decodeContinuationHeader(rx.Payload)
		e := p.table[h.PacketID]
		if e == nil {
			return ParseOutcome{Kind: OutcomeNone}
		}
		k := h.FragmentIndex
		if k < e.expectedIndex {
			// Reassembly monotonicity: stale fragment, ignored.
			return ParseOutcome{Kind: OutcomeNone}
		}
		for e.expectedIndex < k {
			e.quality = append(e.quality, Missed)
			e.expectedIndex++
		}
		e.quality = append(e.quality, crcQuality)
		e.payload = append(e.payload, rx.Payload[continuationHeaderLen:]...)
		e.expectedIndex++

		if e.expectedIndex == e.numFragments {
			p.table[h.PacketID] = nil
			return ParseOutcome{Kind: OutcomeCompleted, Packet: finishEntry(e)}
		}
		return ParseOutcome{Kind: OutcomeNone}
	}
}

// HandleTimeout processes a per-packet-id timeout.
func (p *Parser) HandleTimeout(packetID uint8) ParseOutcome {
	e := p.table[packetID]
	if e == nil {
		return ParseOutcome{Kind: OutcomeNone}
	}
	p.table[packetID] = nil
	for e.expectedIndex < e.numFragments {
		e.quality = append(e.quality, Missed)
		e.expectedIndex++
	}
	return ParseOutcome{Kind: OutcomeCompleted, Packet: finishEntry(e)}
}

func finishEntry(e *entry) *Packet {
	ok := true
	for _, q := range e.quality {
		if q != CrcOk {
			ok = false
			break
		}
	}
	return &Packet{
		OUI:         e.oui,
		DeviceID:    e.deviceID,
		PacketID:    e.packetID,
		Fingerprint: e.tag,
		Payload:     e.payload,
		TimestampUs: e.timestampUs,
		RSSI:        e.rssi,
		SNR:         e.snr,
		Spreading:   e.spreading,
		Quality:     e.quality,
		CRCOk:       ok,
	}
}
