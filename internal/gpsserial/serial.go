// Package gpsserial opens and configures the GPS TTY at 9600 8N1 using raw
// termios syscalls, then runs the producer goroutine: a plain OS goroutine
// that owns the serial file, owns a local deframer, and pushes whole
// frames into a caller-supplied channel for the main loop to drain
// non-blockingly. The channel is bounded by its buffer; while it is full
// the producer blocks.
package gpsserial

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ccroswhite/concentrate/internal/gpsdeframer"
)

// Open opens path and configures the termios settings for 9600 8N1, raw
// mode, matching the fixed line discipline the GPS module expects.
func Open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("gpsserial: open %s: %w", path, err)
	}
	if err := configure(int(f.Fd())); err != nil {
		f.Close()
		return nil, fmt.Errorf("gpsserial: configure %s: %w", path, err)
	}
	return f, nil
}

func configure(fd int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	setSpeed(t)

	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

// Producer reads bytes from f, feeds gpsdeframer, and sends each emitted
// frame over out. Producer errors are logged and terminate only the
// producer goroutine, never the main loop.
func Producer(f *os.File, out chan<- gpsdeframer.Frame, done <-chan struct{}) {
	var d gpsdeframer.Deframer
	buf := make([]byte, 256)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := f.Read(buf)
		if err != nil {
			log.Printf("gpsserial: producer read error: %v", err)
			return
		}
		for _, frame := range d.PushAll(buf[:n]) {
			select {
			case out <- frame:
			case <-done:
				return
			}
		}
	}
}
