// Package concentrator implements the Concentrator Service:
// the non-LongFi top-level loop for the `serve` role.
package concentrator

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ccroswhite/concentrate/internal/gpsdeframer"
	"github.com/ccroswhite/concentrate/internal/gpsserial"
	"github.com/ccroswhite/concentrate/internal/gpstime"
	"github.com/ccroswhite/concentrate/internal/gwerr"
	"github.com/ccroswhite/concentrate/internal/hal"
	"github.com/ccroswhite/concentrate/internal/monitor"
	"github.com/ccroswhite/concentrate/internal/radio"
	"github.com/ccroswhite/concentrate/internal/wire"
)

// transmitPollInterval is the ~5ms busy-wait interval between transmit
// status checks.
const transmitPollInterval = 5 * time.Millisecond

// transmitMaxWait bounds how long the service busy-waits for the radio to
// report Free before giving up and reporting failure to the client.
const transmitMaxWait = 2 * time.Second

// Config configures one Service instance.
type Config struct {
	ListenAddr   string
	PublishAddr  string
	PollInterval time.Duration // default 10ms
	GPSDevice    string        // empty disables GPS entirely
	Monitor      *monitor.Hub  // optional live event tee, nil disables it
}

// Service is the serve-role event loop.
type Service struct {
	cfg        Config
	hal        *hal.Handle
	conn       *net.UDPConn
	publishTo  *net.UDPAddr
	discipline *gpstime.Discipline
	gpsFrames  chan gpsdeframer.Frame
	gpsStop    chan struct{}
	gpsFile    *os.File
}

// New binds the listen socket, resolves the publish address and, when
// GPSDevice is set, opens the GPS TTY and starts its producer. The HAL
// handle h is opened, configured and started by the caller.
func New(cfg Config, h *hal.Handle) (*Service, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, gwerr.New(gwerr.KindConfiguration, "concentrator.New", fmt.Errorf("resolving listen addr: %w", err))
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, gwerr.New(gwerr.KindTransport, "concentrator.New", err)
	}
	pubAddr, err := net.ResolveUDPAddr("udp", cfg.PublishAddr)
	if err != nil {
		conn.Close()
		return nil, gwerr.New(gwerr.KindConfiguration, "concentrator.New", fmt.Errorf("resolving publish addr: %w", err))
	}

	s := &Service{
		cfg:       cfg,
		hal:       h,
		conn:      conn,
		publishTo: pubAddr,
		gpsFrames: make(chan gpsdeframer.Frame, 256),
		gpsStop:   make(chan struct{}),
	}
	s.discipline = gpstime.NewDiscipline(h)

	if cfg.GPSDevice != "" {
		f, err := gpsserial.Open(cfg.GPSDevice)
		if err != nil {
			// GPS producer errors are logged, never terminal.
			log.Printf("concentrator: GPS disabled, open failed: %v", err)
		} else {
			s.gpsFile = f
			go gpsserial.Producer(f, s.gpsFrames, s.gpsStop)
		}
	}

	return s, nil
}

// LocalAddr reports the bound listen address, useful when the configured
// address carried port 0.
func (s *Service) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close releases the listen socket and GPS serial file, if open.
func (s *Service) Close() error {
	close(s.gpsStop)
	if s.gpsFile != nil {
		s.gpsFile.Close()
	}
	return s.conn.Close()
}

// Run drives the event loop until stop is closed or a terminal HAL/
// transport error occurs.
func (s *Service) Run(stop <-chan struct{}) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := s.drainRadio(); err != nil {
			return err
		}

		s.drainGPS()

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PollInterval))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // socket timeout is a normal tick, not an error
			}
			return gwerr.New(gwerr.KindTransport, "concentrator.Run", err)
		}
		s.handleRequest(buf[:n], addr)
	}
}

// drainRadio drains all packets currently buffered in the radio FIFO,
// forwarding each as a response before any client request is processed in
// this iteration.
func (s *Service) drainRadio() error {
	pkts, err := s.hal.Receive()
	if err != nil {
		return gwerr.New(gwerr.KindHardware, "concentrator.drainRadio", err)
	}
	for _, pkt := range pkts {
		if pkt.Modulation != radio.ModLoRa {
			log.Printf("concentrator: dropping non-LoRa packet on if_chain %d", pkt.IFChain)
			continue
		}
		abs, gpsDerived := s.discipline.Convert(pkt.TimestampUs)
		var ts *timestamppb.Timestamp
		if gpsDerived {
			ts = timestamppb.New(abs)
		}
		resp := wire.EncodeRadioRxResp(0, pkt, ts)
		if _, err := s.conn.WriteToUDP(resp, s.publishTo); err != nil {
			log.Printf("concentrator: publish write error: %v", err)
		}
		if s.cfg.Monitor != nil {
			s.cfg.Monitor.Broadcast(monitor.Event{
				Type:      monitor.EventRxPacket,
				Timestamp: abs.Unix(),
				Payload:   pkt,
			})
		}
	}
	return nil
}

// drainGPS non-blockingly consumes any GPS frames available from the
// producer channel, feeding each to the time-discipline module.
func (s *Service) drainGPS() {
	for {
		select {
		case f := <-s.gpsFrames:
			s.discipline.HandleFrame(f)
		default:
			return
		}
	}
}

func (s *Service) handleRequest(b []byte, addr *net.UDPAddr) {
	req, err := wire.DecodeRadioReq(b)
	if err != nil {
		resp := wire.EncodeRadioParseErrResp(b)
		s.reply(resp, addr)
		return
	}

	if req.Tx == nil {
		log.Printf("concentrator: empty request id=%d", req.ID)
		s.reply(wire.EncodeRadioEmptyResp(req.ID), addr)
		return
	}

	pkt, err := radio.NewTxPacket(radio.TxPacket{
		FreqHz:         req.Tx.FreqHz,
		Radio:          req.Tx.Radio,
		PowerDBm:       int8(req.Tx.PowerDBm),
		Bandwidth:      req.Tx.Bandwidth,
		Spreading:      req.Tx.Spreading,
		CodeRate:       req.Tx.CodeRate,
		InvertPolarity: req.Tx.InvertPolarity,
		OmitCRC:        req.Tx.OmitCRC,
		ImplicitHeader: req.Tx.ImplicitHeader,
		Mode:           radio.TxImmediate,
		Payload:        req.Tx.Payload,
	})
	if err != nil {
		s.reply(wire.EncodeRadioTxStatusResp(req.ID, false), addr)
		return
	}

	if !s.hal.WaitTransmitFree(transmitPollInterval, transmitMaxWait) {
		s.reply(wire.EncodeRadioTxStatusResp(req.ID, false), addr)
		return
	}
	success := s.hal.Transmit(pkt) == nil
	s.reply(wire.EncodeRadioTxStatusResp(req.ID, success), addr)
	if s.cfg.Monitor != nil {
		s.cfg.Monitor.Broadcast(monitor.Event{
			Type:      monitor.EventTxStatus,
			Timestamp: time.Now().Unix(),
			Payload:   success,
		})
	}
}

func (s *Service) reply(b []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		log.Printf("concentrator: reply write error: %v", err)
	}
}
