package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// cm108SetGPIOPin toggles a single GPIO pin on a CM108-style USB audio
// fob's HID interface (the common PTT-over-USB-sound-dongle setup). pin is
// 1-8; on selects output high or low. Adapted from the cgo CM108 driver's
// cm108_set_gpio_pin/cm108_write pair into plain hidraw file I/O, since
// this module has no C bridge of its own.
func cm108SetGPIOPin(logger *log.Logger, device string, pin int, on bool) error {
	if pin < 1 || pin > 8 {
		return fmt.Errorf("cm108: GPIO pin %d must be in range 1-8", pin)
	}

	fd, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("cm108: opening %s: %w", device, err)
	}
	defer fd.Close()

	if info, err := unix.IoctlHIDGetRawInfo(int(fd.Fd())); err != nil {
		logger.Warn("cm108: HIDIOCGRAWINFO failed, proceeding anyway", "device", device, "err", err)
	} else {
		logger.Debug("cm108: device identified", "device", device, "vendor", info.Vendor, "product", info.Product)
	}

	var iomask byte = 1 << (pin - 1) // 1 = this pin is an output
	var iodata byte
	if on {
		iodata = 1 << (pin - 1)
	}

	// First two bytes must be zero; CMedia's report format otherwise
	// matches cm108_write's [0, 0, iodata, iomask, 0].
	report := []byte{0, 0, iodata, iomask, 0}
	n, err := fd.Write(report)
	if err != nil {
		return fmt.Errorf("cm108: writing GPIO report to %s: %w", device, err)
	}
	if n != len(report) {
		return fmt.Errorf("cm108: short write to %s (%d of %d bytes)", device, n, len(report))
	}
	return nil
}
