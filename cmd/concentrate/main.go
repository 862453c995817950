// concentrate is the LoRa concentrator gateway daemon's command-line
// surface.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccroswhite/concentrate/internal/concentrator"
	"github.com/ccroswhite/concentrate/internal/config"
	"github.com/ccroswhite/concentrate/internal/hal"
	"github.com/ccroswhite/concentrate/internal/longfi"
	"github.com/ccroswhite/concentrate/internal/longficoord"
	"github.com/ccroswhite/concentrate/internal/monitor"
	"github.com/ccroswhite/concentrate/internal/radio"
	"github.com/ccroswhite/concentrate/internal/wire"
)

var (
	configFile  string
	listenAddr  string
	publishAddr string
	intervalMs  int
	printLevel  int
	webAddr     string

	rootCmd = &cobra.Command{
		Use:   "concentrate",
		Short: "LoRa concentrator gateway daemon",
		Long:  "Bridges a multi-channel LoRa radio board to UDP clients and layers the LongFi framing protocol on top of raw LoRa packets.",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the concentrator service",
		RunE:  runServe,
	}

	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Decode-and-print subscriber (no radio access)",
		RunE:  runListen,
	}

	longfiCmd = &cobra.Command{
		Use:   "longfi",
		Short: "Run the LongFi coordinator",
		RunE:  runLongFi,
	}

	longfiTestCmd = &cobra.Command{
		Use:   "longfi-test",
		Short: "LongFi fragmentation/reassembly test harness",
		RunE:  runLongFiTest,
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "One-shot transmit through a running service",
		RunE:  runSend,
	}

	bistCmd = &cobra.Command{
		Use:   "bist",
		Short: "Built-in self-test: open, start, stop",
		RunE:  runBist,
	}

	connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Open-and-connect only",
		RunE:  runConnect,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&publishAddr, "publish", "", "publish address (overrides config)")
	rootCmd.PersistentFlags().IntVar(&intervalMs, "interval", 0, "polling interval in ms (overrides config, default 10)")
	rootCmd.PersistentFlags().IntVar(&printLevel, "print-level", 1, "verbosity 0/1/2")
	rootCmd.PersistentFlags().StringVar(&webAddr, "web-addr", "", "optional live-monitor websocket address")

	rootCmd.AddCommand(serveCmd, listenCmd, longfiCmd, longfiTestCmd, sendCmd, bistCmd, connectCmd)
}

func main() {
	configureLogging()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// configureLogging honors the CONCENTRATE_LOG / CONCENTRATE_LOG_STYLE
// environment variables.
func configureLogging() {
	if f := os.Getenv("CONCENTRATE_LOG"); f != "" {
		out, err := os.OpenFile(f, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			log.SetOutput(out)
		}
	}
	if os.Getenv("CONCENTRATE_LOG_STYLE") == "bare" {
		log.SetFlags(0)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if listenAddr != "" {
		cfg.Network.ListenAddr = listenAddr
	}
	if publishAddr != "" {
		cfg.Network.PublishAddr = publishAddr
	}
	if intervalMs != 0 {
		cfg.Network.IntervalMs = intervalMs
	}
	if webAddr != "" {
		cfg.Network.WebAddr = webAddr
	}
	return cfg, nil
}

func withSignalStop() <-chan struct{} {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		close(stop)
	}()
	return stop
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := hal.Open()
	if err != nil {
		return err
	}
	if err := cfg.ApplyToHAL(h); err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		return err
	}
	defer h.Stop()

	var hub *monitor.Hub
	if cfg.Network.WebAddr != "" {
		hub = monitor.NewHub()
		go func() {
			if err := monitor.Serve(cfg.Network.WebAddr, hub); err != nil {
				log.Printf("monitor server stopped: %v", err)
			}
		}()
	}

	svc, err := concentrator.New(concentrator.Config{
		ListenAddr:   cfg.Network.ListenAddr,
		PublishAddr:  cfg.Network.PublishAddr,
		PollInterval: time.Duration(cfg.Network.IntervalMs) * time.Millisecond,
		GPSDevice:    cfg.Network.GPSDevice,
		Monitor:      hub,
	}, h)
	if err != nil {
		return err
	}
	defer svc.Close()

	log.Printf("concentrate serve: listening on %s, publishing to %s", cfg.Network.ListenAddr, cfg.Network.PublishAddr)
	return svc.Run(withSignalStop())
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.Network.PublishAddr)
	if err != nil {
		return fmt.Errorf("resolving publish addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("binding publish addr: %w", err)
	}
	defer conn.Close()

	stop := withSignalStop()
	buf := make([]byte, 2048)
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		resp, err := wire.DecodeRadioResp(buf[:n])
		if err != nil {
			if printLevel >= 1 {
				log.Printf("listen: decode error: %v", err)
			}
			continue
		}
		if printLevel >= 1 {
			switch {
			case resp.RxPacket != nil:
				p := resp.RxPacket
				log.Printf("listen: id=%d rx freq=%d sf=%d rssi=%.1f snr=%.1f len=%d", resp.ID, p.FreqHz, p.Spreading, p.RSSI, p.SNRMean, len(p.Payload))
				if printLevel >= 2 {
					log.Printf("listen: payload=%x", p.Payload)
				}
			case resp.TxSuccess != nil:
				log.Printf("listen: id=%d tx success=%v", resp.ID, *resp.TxSuccess)
			case resp.ParseErr != nil:
				log.Printf("listen: id=%d parse_err len=%d", resp.ID, len(resp.ParseErr))
			default:
				log.Printf("listen: id=%d empty", resp.ID)
			}
		}
	}
}

func runLongFi(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	radioConn, radioAddr, err := dialPair(cfg.LongFi.RadioListenAddr, cfg.LongFi.RadioAddr)
	if err != nil {
		return err
	}
	defer radioConn.Close()

	clientConn, clientAddr, err := dialPair(cfg.LongFi.ClientListenAddr, cfg.LongFi.ClientAddr)
	if err != nil {
		return err
	}
	defer clientConn.Close()

	var codec longfi.Codec
	if cfg.LongFi.UseExternalCodec {
		codec = &longfi.ExternalCodec{}
	} else {
		codec = &longfi.LegacyCodec{}
	}

	coord := longficoord.New(codec, radioConn, clientConn, radioAddr, clientAddr)
	if cfg.Network.WebAddr != "" {
		hub := monitor.NewHub()
		coord.Monitor = hub
		go func() {
			if err := monitor.Serve(cfg.Network.WebAddr, hub); err != nil {
				log.Printf("monitor server stopped: %v", err)
			}
		}()
	}
	log.Printf("concentrate longfi: radio %s<->%s, client %s<->%s", cfg.LongFi.RadioListenAddr, cfg.LongFi.RadioAddr, cfg.LongFi.ClientListenAddr, cfg.LongFi.ClientAddr)
	return coord.Run(withSignalStop())
}

func dialPair(listenAddr, peerAddr string) (*net.UDPConn, *net.UDPAddr, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %s: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, nil, fmt.Errorf("binding %s: %w", listenAddr, err)
	}
	paddr, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("resolving %s: %w", peerAddr, err)
	}
	return conn, paddr, nil
}

func runLongFiTest(cmd *cobra.Command, args []string) error {
	var codec longfi.LegacyCodec
	tx, err := codec.Send(longfi.TxUplinkRequest{
		RequestID: 1,
		OUI:       0x12345678,
		DeviceID:  0xABCD,
		Tag:       0xBEEF,
		Spreading: radio.SF10,
		Payload:   []byte("longfi-test harness payload exceeding one fragment capacity for verification"),
	})
	if err != nil {
		return fmt.Errorf("longfi-test: send failed: %w", err)
	}
	fmt.Printf("first fragment: freq=%d len=%d\n", tx.Packet.FreqHz, len(tx.Packet.Payload))
	for {
		out := codec.TransmitComplete()
		if out.Radio != nil {
			fmt.Printf("fragment: freq=%d len=%d\n", out.Radio.Packet.FreqHz, len(out.Radio.Packet.Payload))
			continue
		}
		if out.Client != nil {
			fmt.Printf("send complete: success=%v\n", out.Client.Success)
			break
		}
		break
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := net.Dial("udp", cfg.Network.ListenAddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cfg.Network.ListenAddr, err)
	}
	defer conn.Close()

	req := wire.EncodeRadioReq(1, &wire.TxReqWire{
		FreqHz:    902700000,
		Radio:     radio.Radio0,
		PowerDBm:  20,
		Bandwidth: radio.BW125KHZ,
		Spreading: radio.SF10,
		CodeRate:  radio.CR4_5,
		Payload:   []byte("send"),
	})
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("timed out waiting for response")
	}
	resp, err := wire.DecodeRadioResp(buf[:n])
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	success := resp.TxSuccess != nil && *resp.TxSuccess
	fmt.Printf("response: id=%d success=%v\n", resp.ID, success)
	return nil
}

func runBist(cmd *cobra.Command, args []string) error {
	h, err := hal.Open()
	if err != nil {
		return fmt.Errorf("bist: open failed: %w", err)
	}
	if err := h.Start(); err != nil {
		return fmt.Errorf("bist: start failed: %w", err)
	}
	if st := h.ReceiveStatus(); st != radio.RxOn {
		h.Stop()
		return fmt.Errorf("bist: receive status after start is %d, want on", st)
	}
	if err := h.Stop(); err != nil {
		return fmt.Errorf("bist: stop failed: %w", err)
	}
	fmt.Println("bist: ok")
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	h, err := hal.Open()
	if err != nil {
		return fmt.Errorf("connect: open failed: %w", err)
	}
	defer h.Stop()
	fmt.Println("connect: ok")
	return nil
}
