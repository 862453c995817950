//go:build darwin

package gpsserial

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
)

// setSpeed fixes both directions at 9600 baud. Darwin's speed fields carry
// the literal rate.
func setSpeed(t *unix.Termios) {
	t.Ispeed = unix.B9600
	t.Ospeed = unix.B9600
}
