// Command framesync-play feeds a captured stream of interleaved float32 IQ
// samples (from a file or stdin) through a FrameSynchronizer and logs each
// decoded frame.
//
// Purpose: a reproducible test fixture for the synchronizer, the same role
// doismellburning/samoyed's atest.go plays for its demodulators (reading
// captured audio instead of a live device so behaviour can be checked under
// controlled, repeatable conditions).
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/dspradio/framesync64/src"
)

func main() {
	var inputPath = pflag.StringP("input", "i", "", "IQ sample file to read (default: stdin)")
	var traceSamples = pflag.String("trace-samples", "", "file to write a CSV sample trace to")
	var traceFrames = pflag.String("trace-frames", "", "file to write a CSV frame-stats trace to")
	var verbose = pflag.BoolP("verbose", "v", false, "log every frame's header/payload bytes, not just a summary")
	var help = pflag.Bool("help", false, "display help text")
	pflag.Usage = usage
	pflag.Parse()

	if *help {
		usage()
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "framesync-play"})

	in, err := openInput(*inputPath)
	if err != nil {
		logger.Fatal("opening input", "err", err)
	}
	defer in.Close()

	var traceSink framesync.TraceSink
	if *traceSamples != "" || *traceFrames != "" {
		samplesOut, framesOut, closeFn := openTraceOutputs(logger, *traceSamples, *traceFrames)
		defer closeFn()
		traceSink = framesync.NewFileTraceSink(samplesOut, framesOut)
	}

	var decoded int
	sink := framesync.FrameSinkFunc(func(header []byte, headerValid bool, payload []byte, payloadValid bool, stats framesync.FramestatsView) {
		decoded++
		if *verbose {
			logger.Info("frame decoded",
				"n", decoded, "headerValid", headerValid, "payloadValid", payloadValid,
				"rssi", stats.Rssi, "cfo", stats.Cfo, "header", fmt.Sprintf("% x", header), "payload", fmt.Sprintf("% x", payload))
		} else {
			logger.Info("frame decoded", "n", decoded, "payloadValid", payloadValid, "rssi", stats.Rssi, "cfo", stats.Cfo)
		}
	})

	fs, err := framesync.NewFrameSynchronizer(sink)
	if err != nil {
		logger.Fatal("building frame synchronizer", "err", err)
	}
	if traceSink != nil {
		fs.SetTraceSink(traceSink)
	}

	if err := runSamples(fs, in); err != nil && err != io.EOF {
		logger.Fatal("reading samples", "err", err)
	}

	logger.Info("done", "framesDecoded", decoded)
}

// runSamples reads interleaved (real, imag) float32 pairs in 32 KiB chunks
// and feeds each chunk through fs.Execute in order.
func runSamples(fs *framesync.FrameSynchronizer, r io.Reader) error {
	const chunkSymbols = 4096
	raw := make([]byte, chunkSymbols*8)
	for {
		n, err := io.ReadFull(r, raw)
		if n > 0 {
			chunk := make([]complex64, n/8)
			for i := range chunk {
				re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
				im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
				chunk[i] = complex(re, im)
			}
			fs.Execute(chunk)
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return err
		}
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framesync-play: opening %q: %w", path, err)
	}
	return f, nil
}

func openTraceOutputs(logger *log.Logger, samplesPath, framesPath string) (io.Writer, io.Writer, func()) {
	var samplesOut, framesOut io.Writer = io.Discard, io.Discard
	var closers []io.Closer

	if samplesPath != "" {
		f, err := os.Create(samplesPath)
		if err != nil {
			logger.Fatal("opening sample trace output", "err", err)
		}
		samplesOut = f
		closers = append(closers, f)
	}
	if framesPath != "" {
		f, err := os.Create(framesPath)
		if err != nil {
			logger.Fatal("opening frame trace output", "err", err)
		}
		framesOut = f
		closers = append(closers, f)
	}

	return samplesOut, framesOut, func() {
		for _, c := range closers {
			c.Close()
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "framesync-play: replay captured IQ samples through a frame synchronizer")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  framesync-play [options]")
	fmt.Fprintln(os.Stderr, "")
	pflag.PrintDefaults()
}
