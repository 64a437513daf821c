package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

// openSerialPTT opens a serial-attached PTT keying port, mirroring
// serial_port_open's term.Open/term.RawMode/SetSpeed sequence.
func openSerialPTT(device string, baud int) (*term.Term, error) {
	fd, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial PTT port %s: %w", device, err)
	}
	if baud != 0 {
		if err := fd.SetSpeed(baud); err != nil {
			fd.Close()
			return nil, fmt.Errorf("setting serial PTT speed on %s: %w", device, err)
		}
	}
	return fd, nil
}

// pulseSerialPTT keys a TNC-style serial PTT line by writing the
// conventional single keying byte used by simple serial-attached
// transmitters, mirroring serial_port_write's plain fd.Write.
func pulseSerialPTT(logger *log.Logger, fd *term.Term, on bool) {
	var b byte
	if on {
		b = 1
	}
	if n, err := fd.Write([]byte{b}); err != nil || n != 1 {
		logger.Warn("writing serial PTT keying byte", "err", err)
	}
}
