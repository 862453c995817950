package longficoord

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/ccroswhite/concentrate/internal/longfi"
	"github.com/ccroswhite/concentrate/internal/radio"
	"github.com/ccroswhite/concentrate/internal/wire"
)

// coordHarness wires a Coordinator to two loopback peers: RadioPeer plays
// the serve-role radio service, ClientPeer plays the downstream
// application.
type coordHarness struct {
	RadioPeer  *net.UDPConn
	ClientPeer *net.UDPConn
	RadioAddr  *net.UDPAddr // coordinator's radio-facing socket
	ClientAddr *net.UDPAddr // coordinator's client-facing socket
}

func startCoordinator(t *testing.T) *coordHarness {
	t.Helper()

	bind := func() *net.UDPConn {
		c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("binding: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		return c
	}

	radioPeer := bind()
	clientPeer := bind()
	radioConn := bind()
	clientConn := bind()

	coord := New(
		&longfi.LegacyCodec{},
		radioConn, clientConn,
		radioPeer.LocalAddr().(*net.UDPAddr),
		clientPeer.LocalAddr().(*net.UDPAddr),
	)
	stop := make(chan struct{})
	go coord.Run(stop)
	t.Cleanup(func() { close(stop) })

	return &coordHarness{
		RadioPeer:  radioPeer,
		ClientPeer: clientPeer,
		RadioAddr:  radioConn.LocalAddr().(*net.UDPAddr),
		ClientAddr: clientConn.LocalAddr().(*net.UDPAddr),
	}
}

func TestCoordinatorForwardsReassembledPacketToClient(t *testing.T) {
	h := startCoordinator(t)

	payload := []byte{0, 0x78, 0x56, 0x34, 0x12, 0xCD, 0xAB, 0xEF, 0xBE, 0x01, 0x02, 0x03}
	rx := radio.RxPacket{
		FreqHz:    902700000,
		CRCCheck:  radio.CRCPass,
		Spreading: radio.SF10,
		Payload:   payload,
	}
	if _, err := h.RadioPeer.WriteToUDP(wire.EncodeRadioRxResp(0, rx, nil), h.RadioAddr); err != nil {
		t.Fatalf("writing rx: %v", err)
	}

	buf := make([]byte, 2048)
	h.ClientPeer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := h.ClientPeer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("reading client-side response: %v", err)
	}
	resp, err := wire.DecodeLongFiResp(buf[:n])
	if err != nil {
		t.Fatalf("decoding LongFi response: %v", err)
	}
	if resp.Rx == nil {
		t.Fatalf("expected an rx packet, got %+v", resp)
	}
	if resp.Rx.OUI != 0x12345678 || resp.Rx.DeviceID != 0xABCD {
		t.Errorf("unexpected identity fields: %+v", resp.Rx)
	}
	if !bytes.Equal(resp.Rx.Payload, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("payload = %x, want 010203", resp.Rx.Payload)
	}
	if !resp.Rx.CRCCheck {
		t.Errorf("expected crc_check=true")
	}
}

func TestCoordinatorPacesMultiFragmentSend(t *testing.T) {
	h := startCoordinator(t)

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	req := wire.EncodeLongFiReq(9, &wire.LongFiTxUplinkWire{
		OUI:       0x1,
		DeviceID:  0x2,
		Spreading: radio.SF10,
		Payload:   payload,
	})
	if _, err := h.ClientPeer.WriteToUDP(req, h.ClientAddr); err != nil {
		t.Fatalf("writing uplink request: %v", err)
	}

	buf := make([]byte, 2048)
	for fragments := 1; fragments <= 8; fragments++ {
		h.RadioPeer.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := h.RadioPeer.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("reading fragment %d: %v", fragments, err)
		}
		frag, err := wire.DecodeRadioReq(buf[:n])
		if err != nil {
			t.Fatalf("decoding fragment: %v", err)
		}
		if frag.Tx == nil {
			t.Fatalf("expected a tx request, got %+v", frag)
		}

		// Acknowledge the fragment the way the serve loop would.
		if _, err := h.RadioPeer.WriteToUDP(wire.EncodeRadioTxStatusResp(0, true), h.RadioAddr); err != nil {
			t.Fatalf("writing ack: %v", err)
		}

		// After the final fragment's ack, the client hears a completion.
		h.ClientPeer.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		n, _, err = h.ClientPeer.ReadFromUDP(buf)
		if err != nil {
			continue // not done yet
		}
		resp, err := wire.DecodeLongFiResp(buf[:n])
		if err != nil {
			t.Fatalf("decoding completion: %v", err)
		}
		if resp.TxStatus == nil || !*resp.TxStatus {
			t.Fatalf("expected tx_status success, got %+v", resp)
		}
		if resp.ID != 9 {
			t.Errorf("completion id = %d, want 9", resp.ID)
		}
		if fragments < 2 {
			t.Errorf("send completed after %d fragments, expected several", fragments)
		}
		return
	}
	t.Fatalf("send never completed")
}
