// Package hal is the narrow, typed wrapper around the native concentrator
// library. It is not safe to share across threads; callers must treat a
// Handle as a single-owner resource.
//
// The real backing library is the Semtech `libloragw` C driver, reached in
// production through lgw_board_setconf/lgw_rxrf_setconf/lgw_rxif_setconf/
// lgw_txgain_setconf/lgw_start/lgw_receive/lgw_send/lgw_status. That driver
// cannot be linked here, so Handle implements the same open/configure/start/
// receive/transmit/status contract against an in-process FIFO simulation;
// the TODOs name the lgw_* call each operation maps to.
package hal

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ccroswhite/concentrate/internal/gwerr"
	"github.com/ccroswhite/concentrate/internal/radio"
)

// owned enforces the process-wide single-owner invariant: a process-wide
// flag serializes handle creation and destruction.
var owned atomic.Bool

// BoardConfig mirrors the board-level fields of the Configuration Record.
type BoardConfig struct {
	LoRaWANPublic    bool
	ClockSourceRadio radio.RadioIndex
	SPIDevicePath    string
}

// RadioConfig mirrors one entry of the optional radio list.
type RadioConfig struct {
	ID         radio.RadioIndex
	FreqHz     uint32
	RSSIOffset float32
	Model      string
	TxEnable   bool
}

// ChannelConfig mirrors one entry of the optional multirate channel list.
type ChannelConfig struct {
	RadioID  radio.RadioIndex
	IFOffset int32
}

// GainEntry mirrors one entry of the optional transmit gain table. The LUT
// accepts 1..16 entries; other sizes fail with a Configuration error.
type GainEntry struct {
	RFPowerDBm  int8
	DigitalGain uint8
	PAGain      uint8
	MixGain     uint8
}

// Handle is a process-unique, non-shareable ownership token over the radio
// device.
type Handle struct {
	mu sync.Mutex

	started bool
	board   BoardConfig
	radios  []RadioConfig
	chans   []ChannelConfig
	gains   []GainEntry

	txStatus radio.TxStatus
	rxStatus radio.RxStatus

	startedAt time.Time
	fifo      []radio.RxPacket

	released bool
}

// Open acquires the process-wide single owner. It fails with a Busy error
// if another handle is already live in this process.
func Open() (*Handle, error) {
	if !owned.CompareAndSwap(false, true) {
		return nil, gwerr.New(gwerr.KindBusy, "hal.Open", fmt.Errorf("a concentrator handle is already open in this process"))
	}
	return &Handle{
		txStatus: radio.TxOff,
		rxStatus: radio.RxOff,
	}, nil
}

// ConfigBoard sets the board-level configuration. Configuration operations
// must precede Start.
func (h *Handle) ConfigBoard(cfg BoardConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return gwerr.New(gwerr.KindConfiguration, "hal.ConfigBoard", fmt.Errorf("cannot configure after start"))
	}
	// TODO: lgw_board_setconf() against the real SX1301/SX1302 driver.
	h.board = cfg
	return nil
}

// ConfigRxRF configures one RF front end.
func (h *Handle) ConfigRxRF(cfg RadioConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return gwerr.New(gwerr.KindConfiguration, "hal.ConfigRxRF", fmt.Errorf("cannot configure after start"))
	}
	// TODO: lgw_rxrf_setconf() per radio index.
	h.radios = append(h.radios, cfg)
	return nil
}

// ConfigChannel configures one IF chain / multirate channel.
func (h *Handle) ConfigChannel(cfg ChannelConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return gwerr.New(gwerr.KindConfiguration, "hal.ConfigChannel", fmt.Errorf("cannot configure after start"))
	}
	// TODO: lgw_rxif_setconf() per IF chain.
	h.chans = append(h.chans, cfg)
	return nil
}

// ConfigTxGain installs the transmit gain LUT. Any size outside 1..16
// entries is a Configuration error.
func (h *Handle) ConfigTxGain(entries []GainEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return gwerr.New(gwerr.KindConfiguration, "hal.ConfigTxGain", fmt.Errorf("cannot configure after start"))
	}
	if len(entries) < 1 || len(entries) > 16 {
		return gwerr.New(gwerr.KindConfiguration, "hal.ConfigTxGain", fmt.Errorf("gain LUT must have 1..16 entries, got %d", len(entries)))
	}
	// TODO: lgw_txgain_setconf() with the LUT.
	h.gains = entries
	return nil
}

// Start brings the concentrator online. Receive and transmit must follow
// Start.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return gwerr.New(gwerr.KindHardware, "hal.Start", fmt.Errorf("already started"))
	}
	// TODO: lgw_start() against the real driver.
	h.started = true
	h.startedAt = time.Now()
	h.txStatus = radio.TxFree
	h.rxStatus = radio.RxOn
	return nil
}

// Stop shuts the concentrator down and releases the single-owner flag so a
// later Open call can succeed again. Stop is idempotent.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		h.release()
		return nil
	}
	// TODO: lgw_stop() against the real driver.
	h.started = false
	h.txStatus = radio.TxOff
	h.rxStatus = radio.RxOff
	h.release()
	return nil
}

func (h *Handle) release() {
	if !h.released {
		h.released = true
		owned.Store(false)
	}
}

// Receive drains up to 16 packets currently buffered in the radio FIFO,
// distinguishing an empty result from an absent one via a nil slice.
func (h *Handle) Receive() ([]radio.RxPacket, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, gwerr.New(gwerr.KindHardware, "hal.Receive", fmt.Errorf("not started"))
	}
	// TODO: lgw_receive() against the real driver; here the FIFO is fed by
	// Inject for simulation/testing purposes.
	if len(h.fifo) == 0 {
		return []radio.RxPacket{}, nil
	}
	n := len(h.fifo)
	if n > 16 {
		n = 16
	}
	out := make([]radio.RxPacket, n)
	copy(out, h.fifo[:n])
	h.fifo = h.fifo[n:]
	return out, nil
}

// Inject appends a simulated received packet to the FIFO. Test and
// simulation hook only; there is no production caller.
func (h *Handle) Inject(pkt radio.RxPacket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fifo = append(h.fifo, pkt)
}

// Transmit submits one packet. Callers must observe TransmitStatus and
// only submit when it reports Free.
func (h *Handle) Transmit(pkt *radio.TxPacket) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return gwerr.New(gwerr.KindHardware, "hal.Transmit", fmt.Errorf("not started"))
	}
	if len(pkt.Payload) > radio.MaxPayload {
		return gwerr.New(gwerr.KindHardware, "hal.Transmit", fmt.Errorf("payload length %d exceeds %d byte bound", len(pkt.Payload), radio.MaxPayload))
	}
	if h.txStatus != radio.TxFree {
		return gwerr.New(gwerr.KindBusy, "hal.Transmit", fmt.Errorf("transmit status is %s, not free", h.txStatus))
	}
	// TODO: lgw_send() with a populated lgw_pkt_tx_s-equivalent structure.
	h.txStatus = radio.TxScheduled
	go h.simulateTx()
	return nil
}

// simulateTx models the driver's async completion of a submitted packet so
// TransmitStatus transitions Scheduled -> Transmitting -> Free the way the
// real hardware would report it.
func (h *Handle) simulateTx() {
	time.Sleep(2 * time.Millisecond)
	h.mu.Lock()
	h.txStatus = radio.TxTransmitting
	h.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	h.mu.Lock()
	h.txStatus = radio.TxFree
	h.mu.Unlock()
}

// TransmitStatus reports the current transmit state machine value.
func (h *Handle) TransmitStatus() radio.TxStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txStatus
}

// ReceiveStatus reports whether the receive path is on, off, or suspended.
func (h *Handle) ReceiveStatus() radio.RxStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rxStatus
}

// LastTrigger returns the concentrator counter value used as the trigger
// timestamp. The in-process simulation has no PPS input: it returns the
// counter's current value (microseconds since Start), or 0 before Start.
func (h *Handle) LastTrigger() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startedAt.IsZero() {
		return 0
	}
	return uint32(time.Since(h.startedAt).Microseconds())
}

// WaitTransmitFree polls TransmitStatus every pollEvery (the service layer
// passes ~5ms) until the transmitter reports Free, returning true, or until
// maxWait elapses, returning false. Intended only for short bounded waits
// inside the service loop.
func (h *Handle) WaitTransmitFree(pollEvery time.Duration, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		if h.TransmitStatus() == radio.TxFree {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollEvery)
	}
}
