// Package longficoord runs the LongFi Coordinator: a
// cooperative event loop with three sources — a radio-facing UDP socket, a
// client-facing UDP socket, and a per-packet-id fragmentation timer table —
// dispatching between the longfi Parser and Sender.
package longficoord

import (
	"log"
	"net"
	"time"

	"github.com/ccroswhite/concentrate/internal/longfi"
	"github.com/ccroswhite/concentrate/internal/monitor"
	"github.com/ccroswhite/concentrate/internal/wire"
)

// reassemblyDeadline is the default per-packet reassembly timeout: 4
// seconds.
const reassemblyDeadline = 4 * time.Second

// Coordinator owns the 256-slot timer-handle table and wires the radio and
// client UDP sockets to a longfi.Codec.
type Coordinator struct {
	Codec      longfi.Codec
	RadioConn  *net.UDPConn
	RadioAddr  *net.UDPAddr
	ClientConn *net.UDPConn
	ClientAddr *net.UDPAddr

	// Monitor optionally tees completed LongFi packets to a live dashboard.
	// Nil disables it.
	Monitor *monitor.Hub

	timers [256]*time.Timer
	fire   chan uint8
}

// New constructs a Coordinator with its timer-fire channel ready.
func New(codec longfi.Codec, radioConn, clientConn *net.UDPConn, radioAddr, clientAddr *net.UDPAddr) *Coordinator {
	return &Coordinator{
		Codec:      codec,
		RadioConn:  radioConn,
		RadioAddr:  radioAddr,
		ClientConn: clientConn,
		ClientAddr: clientAddr,
		fire:       make(chan uint8, 256),
	}
}

// arm (re)arms the timer for packetID, overwriting (and thereby losing)
// any still-live prior timer for the same id — a known imprecision: a
// fast-incoming multi-fragment retransmit can push out the timeout for an
// unrelated, still-assembling send that happens to reuse the same id.
func (c *Coordinator) arm(packetID uint8) {
	if c.timers[packetID] != nil {
		c.timers[packetID].Stop()
	}
	c.timers[packetID] = time.AfterFunc(reassemblyDeadline, func() {
		select {
		case c.fire <- packetID:
		default:
			log.Printf("longficoord: timer fire channel full, dropping timeout for packet id %d", packetID)
		}
	})
}

// Run drives the event loop until stop is closed. Two reader goroutines and
// the timer-fire channel feed a single dispatch select, so the codec and
// timer table are only ever touched from this loop.
func (c *Coordinator) Run(stop <-chan struct{}) error {
	radioBytes := make(chan []byte, 64)
	clientBytes := make(chan []byte, 64)
	errs := make(chan error, 2)

	go readLoop(c.RadioConn, radioBytes, errs, stop)
	go readLoop(c.ClientConn, clientBytes, errs, stop)

	for {
		select {
		case <-stop:
			return nil
		case err := <-errs:
			return err
		case b := <-radioBytes:
			c.handleRadioSide(b)
		case b := <-clientBytes:
			c.handleClientSide(b)
		case id := <-c.fire:
			c.handleTimeout(id)
		}
	}
}

func readLoop(conn *net.UDPConn, out chan<- []byte, errs chan<- error, stop <-chan struct{}) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-stop:
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case errs <- err:
			case <-stop:
			}
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- cp:
		case <-stop:
			return
		}
	}
}

func (c *Coordinator) handleRadioSide(b []byte) {
	env, err := wire.DecodeRadioResp(b)
	if err != nil {
		log.Printf("longficoord: radio-side decode error: %v", err)
		return
	}
	switch {
	case env.RxPacket != nil:
		outcome := c.Codec.ParseRadioRx(longfi.RadioRx{
			CRCCheck:    env.RxPacket.CRCCheck,
			Payload:     env.RxPacket.Payload,
			TimestampUs: env.RxPacket.TimestampUs,
			RSSI:        env.RxPacket.RSSI,
			SNR:         env.RxPacket.SNRMean,
			Spreading:   env.RxPacket.Spreading,
		})
		c.dispatchParseOutcome(outcome)
	case env.TxAck != nil:
		c.dispatchSendOutcome(c.Codec.TransmitComplete())
	}
}

func (c *Coordinator) dispatchParseOutcome(o longfi.ParseOutcome) {
	switch o.Kind {
	case longfi.OutcomeCompleted:
		c.sendToClient(wire.EncodeLongFiRxResp(0, o.Packet))
		if c.Monitor != nil {
			c.Monitor.Broadcast(monitor.Event{
				Type:      monitor.EventLongFiRx,
				Timestamp: time.Now().Unix(),
				Payload:   o.Packet,
			})
		}
	case longfi.OutcomeBegin:
		c.arm(o.PacketID)
	}
}

func (c *Coordinator) dispatchSendOutcome(o longfi.SendOutcome) {
	if o.Radio != nil {
		c.sendToRadio(wire.EncodeRadioTxReq(0, o.Radio.Packet))
	}
	if o.Client != nil {
		c.sendToClient(wire.EncodeLongFiTxStatusResp(o.Client.RequestID, o.Client.Success))
	}
}

func (c *Coordinator) handleClientSide(b []byte) {
	req, err := wire.DecodeLongFiReq(b)
	if err != nil {
		log.Printf("longficoord: client-side decode error: %v", err)
		return
	}
	if req.TxUplink == nil {
		return
	}
	tx, err := c.Codec.Send(longfi.TxUplinkRequest{
		RequestID:            req.ID,
		OUI:                  req.TxUplink.OUI,
		DeviceID:             req.TxUplink.DeviceID,
		Spreading:            req.TxUplink.Spreading,
		Payload:              req.TxUplink.Payload,
		DisableFragmentation: req.TxUplink.DisableFragmentation,
	})
	if err != nil {
		log.Printf("longficoord: send error: %v", err)
		return
	}
	if tx != nil {
		c.sendToRadio(wire.EncodeRadioTxReq(0, tx.Packet))
	}
}

func (c *Coordinator) handleTimeout(packetID uint8) {
	c.timers[packetID] = nil
	outcome := c.Codec.HandleTimeout(packetID)
	if outcome.Kind == longfi.OutcomeCompleted {
		c.dispatchParseOutcome(outcome)
	}
}

func (c *Coordinator) sendToRadio(b []byte) {
	if _, err := c.RadioConn.WriteToUDP(b, c.RadioAddr); err != nil {
		log.Printf("longficoord: radio-side write error: %v", err)
	}
}

func (c *Coordinator) sendToClient(b []byte) {
	if _, err := c.ClientConn.WriteToUDP(b, c.ClientAddr); err != nil {
		log.Printf("longficoord: client-side write error: %v", err)
	}
}
