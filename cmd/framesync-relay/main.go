// Command framesync-relay decodes frames from a live IQ TCP feed and
// republishes each one, both as length-prefixed frames on its own TCP
// listener (advertised over mDNS/DNS-SD so clients can find it without a
// hardcoded address or port) and as a minimal KISS-style byte stream on a
// pseudo-terminal for legacy tooling that expects a serial TNC.
//
// Grounded on doismellburning/samoyed's src/dns_sd.go (dnssd.Config /
// dnssd.NewService / dnssd.NewResponder / rp.Respond) for the mDNS
// advertisement, and src/kiss.go's pty.Open() for the pseudo-terminal.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/spf13/pflag"

	"github.com/dspradio/framesync64/src"
)

const dnsSDServiceType = "_framesync64-tcp._tcp"
const kissFrameEnd = 0xC0

func main() {
	var listenAddr = pflag.StringP("listen", "l", ":7355", "TCP address decoded frames are relayed on")
	var serviceName = pflag.StringP("name", "n", "", "mDNS service name (default: hostname)")
	var noMDNS = pflag.Bool("no-mdns", false, "disable DNS-SD/mDNS advertisement")
	var noPty = pflag.Bool("no-pty", false, "disable the KISS-framed pseudo-terminal output")
	var iqAddr = pflag.StringP("iq-source", "i", "", "TCP address to read interleaved float32 IQ samples from")
	var help = pflag.Bool("help", false, "display help text")
	pflag.Usage = usage
	pflag.Parse()

	if *help {
		usage()
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "framesync-relay"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := newRelay()

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatal("listening", "addr", *listenAddr, "err", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	logger.Info("relaying decoded frames", "addr", listener.Addr())

	if !*noMDNS {
		stopAnnounce, err := announce(logger, *serviceName, port)
		if err != nil {
			logger.Error("DNS-SD announce failed, continuing without it", "err", err)
		} else {
			defer stopAnnounce()
		}
	}

	var ptmx *os.File
	if !*noPty {
		ptmx, err = openKISSPty(logger)
		if err != nil {
			logger.Error("pseudo-terminal setup failed, continuing without it", "err", err)
		} else {
			defer ptmx.Close()
		}
	}

	go acceptRelayClients(ctx, logger, listener, relay)

	fs, err := framesync.NewFrameSynchronizer(framesync.FrameSinkFunc(
		func(header []byte, headerValid bool, payload []byte, payloadValid bool, stats framesync.FramestatsView) {
			relay.broadcast(header, payload, payloadValid)
			if ptmx != nil {
				writeKISSFrame(logger, ptmx, header, payload)
			}
		}))
	if err != nil {
		logger.Fatal("building frame synchronizer", "err", err)
	}

	if *iqAddr != "" {
		go relay.pumpFromIQSource(ctx, logger, *iqAddr, fs)
	} else {
		logger.Warn("no --iq-source given; nothing will ever be decoded")
	}

	<-ctx.Done()
	logger.Info("shutting down")
}

// relay fans a decoded frame out to every currently-connected TCP client as
// a 2-byte big-endian length-prefixed [valid|header|payload] blob, where
// valid is a single byte, 1 or 0.
type relay struct {
	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

func newRelay() *relay {
	return &relay{clients: make(map[net.Conn]struct{})}
}

func (r *relay) add(c net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

func (r *relay) remove(c net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

func (r *relay) broadcast(header, payload []byte, valid bool) {
	body := make([]byte, 0, 1+len(header)+len(payload))
	if valid {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	body = append(body, header...)
	body = append(body, payload...)

	frame := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(frame, uint16(len(body)))
	copy(frame[2:], body)

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		_, _ = c.Write(frame)
	}
}

// pumpFromIQSource dials addr, decodes interleaved float32 I/Q samples from
// it the same way framesync-play's runSamples does for a file, and feeds
// them through fs so the synchronizer's sink (wired to relay.broadcast and
// the KISS pty) actually fires. Unlike framesync-play's one-shot file
// replay, a dropped connection is redialed with a short backoff until ctx
// is cancelled, since this is meant to run unattended.
func (r *relay) pumpFromIQSource(ctx context.Context, logger *log.Logger, addr string, fs *framesync.FrameSynchronizer) {
	for ctx.Err() == nil {
		logger.Info("connecting to IQ source", "addr", addr)
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			logger.Error("connecting to IQ source", "err", err)
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}

		if err := readIQSamples(ctx, conn, fs); err != nil && err != io.EOF {
			logger.Error("reading IQ samples", "err", err)
		}
		conn.Close()

		if !sleepOrDone(ctx, time.Second) {
			return
		}
	}
}

// readIQSamples reads interleaved (real, imag) float32 pairs in 32 KiB
// chunks from r and feeds each chunk through fs.Execute in order.
func readIQSamples(ctx context.Context, r io.Reader, fs *framesync.FrameSynchronizer) error {
	const chunkSymbols = 4096
	raw := make([]byte, chunkSymbols*8)
	for ctx.Err() == nil {
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
	return ctx.Err()
}

// sleepOrDone waits for either d to elapse or ctx to be cancelled, and
// reports whether the caller should keep going (i.e. ctx was not done).
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func acceptRelayClients(ctx context.Context, logger *log.Logger, listener net.Listener, r *relay) {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("accept", "err", err)
			continue
		}
		r.add(conn)
		go func() {
			defer r.remove(conn)
			defer conn.Close()
			buf := make([]byte, 1)
			for {
				if _, err := conn.Read(buf); err != nil {
					return
				}
			}
		}()
	}
}

// announce advertises the relay's TCP listener over mDNS/DNS-SD, in the
// same shape as dns_sd.go: build a dnssd.Config, register it with a
// dnssd.Responder, and run the responder in the background.
func announce(logger *log.Logger, name string, port int) (func(), error) {
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		} else {
			name = "framesync-relay"
		}
	}

	cfg := dnssd.Config{
		Name: name,
		Type: dnsSDServiceType,
		Port: port,
	}
	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating DNS-SD service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("creating DNS-SD responder: %w", err)
	}
	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("adding DNS-SD service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("DNS-SD responder stopped", "err", err)
		}
	}()

	logger.Info("DNS-SD announcing", "name", name, "type", dnsSDServiceType, "port", port)
	return cancel, nil
}

// openKISSPty opens a pseudo-terminal pair and logs the slave device's path
// so legacy KISS-speaking tools can attach to it.
func openKISSPty(logger *log.Logger) (*os.File, error) {
	ptmx, pts, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("opening pseudo-terminal: %w", err)
	}
	logger.Info("KISS pseudo-terminal ready", "device", pts.Name())
	pts.Close()
	return ptmx, nil
}

// writeKISSFrame writes header||payload to the pty wrapped in minimal
// KISS framing (a leading/trailing 0xC0 delimiter, with 0xC0/0xDB bytes
// escaped per the KISS protocol); no port/command byte is prefixed since
// this stream carries only data frames.
func writeKISSFrame(logger *log.Logger, w *os.File, header, payload []byte) {
	out := make([]byte, 0, 2+2*(len(header)+len(payload)))
	out = append(out, kissFrameEnd)
	for _, b := range append(append([]byte{}, header...), payload...) {
		switch b {
		case 0xC0:
			out = append(out, 0xDB, 0xDC)
		case 0xDB:
			out = append(out, 0xDB, 0xDD)
		default:
			out = append(out, b)
		}
	}
	out = append(out, kissFrameEnd)

	if _, err := w.Write(out); err != nil {
		logger.Warn("writing KISS frame to pty", "err", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "framesync-relay: relay decoded frames over TCP, mDNS-advertised, plus a KISS pty")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  framesync-relay [options]")
	fmt.Fprintln(os.Stderr, "")
	pflag.PrintDefaults()
}
