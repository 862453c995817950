//go:build linux

package gpsserial

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

// setSpeed fixes both directions at 9600 baud. Linux encodes the rate in
// the CBAUD bits of Cflag as well as the Ispeed/Ospeed fields.
func setSpeed(t *unix.Termios) {
	t.Cflag &^= unix.CBAUD
	t.Cflag |= unix.B9600
	t.Ispeed = unix.B9600
	t.Ospeed = unix.B9600
}
