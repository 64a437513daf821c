// Command framesync-radio captures live audio from a sound device, feeds it
// through a FrameSynchronizer, and optionally drives a GPIO line, a
// CM108-style USB HID GPIO pin, or a serial PTT line as a frame-lock
// indicator, and/or tunes an attached radio over Hamlib before starting
// capture.
//
// Grounded conceptually on doismellburning/samoyed's hardware-adjacent
// files (src/ptt.go's "toggle a line on an event" shape, src/deviceid.go's
// YAML config loading, src/cm108.go's HID GPIO report format, and
// src/serial_port.go's term usage) — this binary is the first concrete
// home in this module for the portaudio/gpiocdev/goHamlib/go-udev/x-sys/
// pkg-term dependencies the teacher's go.mod carries but none of its
// retrieved non-cgo files exercise.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/jochenvg/go-udev"
	"github.com/pkg/term"
	"github.com/spf13/pflag"
	"github.com/warthog618/go-gpiocdev"
	"github.com/xylo04/goHamlib"
	"gopkg.in/yaml.v3"

	"github.com/dspradio/framesync64/src"
)

// Config mirrors doismellburning/samoyed's deviceid.go pattern of a small
// YAML-loaded settings struct alongside command-line flags.
type Config struct {
	SampleRate    float64 `yaml:"sample_rate"`
	WaitForDevice string  `yaml:"wait_for_device"`
	LockIndicator struct {
		Chip   string `yaml:"chip"`
		Offset int    `yaml:"offset"`
	} `yaml:"lock_indicator"`
	CM108Indicator struct {
		Device string `yaml:"device"`
		Pin    int    `yaml:"pin"`
	} `yaml:"cm108_indicator"`
	SerialPTT struct {
		Device string `yaml:"device"`
		Baud   int    `yaml:"baud"`
	} `yaml:"serial_ptt"`
	Rig struct {
		Model  int     `yaml:"model"`
		Port   string  `yaml:"port"`
		FreqHz float64 `yaml:"freq_hz"`
	} `yaml:"rig"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	cfg.SampleRate = 48000
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("framesync-radio: reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("framesync-radio: parsing config %q: %w", path, err)
	}
	return cfg, nil
}

func main() {
	var configPath = pflag.StringP("config", "c", "", "YAML config file")
	var help = pflag.Bool("help", false, "display help text")
	pflag.Usage = usage
	pflag.Parse()

	if *help {
		usage()
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "framesync-radio"})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WaitForDevice != "" {
		if err := waitForDevice(ctx, logger, cfg.WaitForDevice); err != nil {
			logger.Fatal("waiting for device", "err", err)
		}
	}

	if cfg.Rig.Model != 0 {
		if err := tuneRig(logger, cfg); err != nil {
			logger.Fatal("tuning rig", "err", err)
		}
	}

	var indicator *gpiocdev.Line
	if cfg.LockIndicator.Chip != "" {
		indicator, err = gpiocdev.RequestLine(cfg.LockIndicator.Chip, cfg.LockIndicator.Offset, gpiocdev.AsOutput(0))
		if err != nil {
			logger.Fatal("requesting GPIO lock indicator line", "err", err)
		}
		defer indicator.Close()
	}

	var serialPTT *term.Term
	if cfg.SerialPTT.Device != "" {
		serialPTT, err = openSerialPTT(cfg.SerialPTT.Device, cfg.SerialPTT.Baud)
		if err != nil {
			logger.Fatal("opening serial PTT", "err", err)
		}
		defer serialPTT.Close()
	}

	if err := portaudio.Initialize(); err != nil {
		logger.Fatal("initializing portaudio", "err", err)
	}
	defer portaudio.Terminate()

	const framesPerBuffer = 1024
	in := make([]float32, framesPerBuffer*2) // interleaved I/Q

	stream, err := portaudio.OpenDefaultStream(2, 0, cfg.SampleRate, framesPerBuffer, in)
	if err != nil {
		logger.Fatal("opening audio stream", "err", err)
	}
	defer stream.Close()

	var decoded int
	sink := framesync.FrameSinkFunc(func(header []byte, headerValid bool, payload []byte, payloadValid bool, stats framesync.FramestatsView) {
		decoded++
		logger.Info("frame decoded", "n", decoded, "payloadValid", payloadValid, "rssi", stats.Rssi, "cfo", stats.Cfo)
		if indicator != nil {
			setIndicator(logger, indicator, payloadValid)
		}
		if cfg.CM108Indicator.Device != "" && payloadValid {
			setCM108Indicator(logger, cfg)
		}
		if serialPTT != nil && payloadValid {
			pulseSerialPTT(logger, serialPTT, true)
			go func() {
				time.Sleep(50 * time.Millisecond)
				pulseSerialPTT(logger, serialPTT, false)
			}()
		}
	})

	fs, err := framesync.NewFrameSynchronizer(sink)
	if err != nil {
		logger.Fatal("building frame synchronizer", "err", err)
	}

	if err := stream.Start(); err != nil {
		logger.Fatal("starting audio stream", "err", err)
	}
	defer stream.Stop()

	logger.Info("capturing", "sampleRate", cfg.SampleRate, "framesPerBuffer", framesPerBuffer)

	chunk := make([]complex64, framesPerBuffer)
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			logger.Error("audio read", "err", err)
			continue
		}
		for i := range chunk {
			chunk[i] = complex(in[2*i], in[2*i+1])
		}
		fs.Execute(chunk)
	}

	logger.Info("shutting down", "framesDecoded", decoded)
}

// setIndicator briefly pulses the frame-lock GPIO line high on a valid
// decode; it never blocks the capture loop for more than a few
// milliseconds.
func setIndicator(logger *log.Logger, line *gpiocdev.Line, on bool) {
	if !on {
		return
	}
	if err := line.SetValue(1); err != nil {
		logger.Warn("setting GPIO indicator", "err", err)
		return
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = line.SetValue(0)
	}()
}

// setCM108Indicator pulses a CM108-style USB sound fob's HID GPIO pin the
// same way setIndicator pulses a native GPIO line, for setups that expose
// their lock indicator or PTT relay through a USB audio dongle instead of
// (or alongside) a Linux GPIO chip.
func setCM108Indicator(logger *log.Logger, cfg Config) {
	device, pin := cfg.CM108Indicator.Device, cfg.CM108Indicator.Pin
	if err := cm108SetGPIOPin(logger, device, pin, true); err != nil {
		logger.Warn("setting CM108 indicator", "err", err)
		return
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		if err := cm108SetGPIOPin(logger, device, pin, false); err != nil {
			logger.Warn("clearing CM108 indicator", "err", err)
		}
	}()
}

// tuneRig programs the configured rig's VFO frequency over Hamlib before
// capture starts. Frequency tracking during capture is out of scope.
func tuneRig(logger *log.Logger, cfg Config) error {
	rig := goHamlib.NewRig(cfg.Rig.Model)
	if err := rig.SetConf("rig_pathname", cfg.Rig.Port); err != nil {
		return fmt.Errorf("configuring rig port: %w", err)
	}
	if err := rig.Open(); err != nil {
		return fmt.Errorf("opening rig: %w", err)
	}
	defer rig.Close()

	if err := rig.SetFreq(goHamlib.RIG_VFO_CURR, cfg.Rig.FreqHz); err != nil {
		return fmt.Errorf("setting rig frequency: %w", err)
	}
	logger.Info("rig tuned", "freqHz", cfg.Rig.FreqHz)
	return nil
}

// waitForDevice blocks until udev reports the named device subsystem has a
// device present, or ctx is cancelled.
func waitForDevice(ctx context.Context, logger *log.Logger, subsystem string) error {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem(subsystem); err != nil {
		return fmt.Errorf("matching subsystem %q: %w", subsystem, err)
	}
	devices, err := enum.Devices()
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) > 0 {
		return nil
	}

	monitor := u.NewMonitorFromNetlink("udev")
	if err := monitor.FilterAddMatchSubsystem(subsystem); err != nil {
		return fmt.Errorf("filtering monitor subsystem %q: %w", subsystem, err)
	}
	deviceCh, errCh, err := monitor.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("starting udev monitor: %w", err)
	}

	logger.Info("waiting for device", "subsystem", subsystem)
	select {
	case <-deviceCh:
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "framesync-radio: capture live audio and decode frames")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  framesync-radio [options]")
	fmt.Fprintln(os.Stderr, "")
	pflag.PrintDefaults()
}
