package framesync

import (
	"fmt"
	"io"
	"time"

	"github.com/lestrrat-go/strftime"
)

// TraceSink is the optional debug/dump facility named in spec.md §9: "Expose
// it as an optional trait the owner attaches; do not litter the hot path
// with conditional branches. Build it as a side object that subscribes to
// an 'on sample' hook when enabled, and to an 'on frame' hook to dump
// collected buffers."
//
// It replaces framesync64.c's compile-time DEBUG_FRAMESYNC64/windowcf dump
// facility (_examples/original_source/src/framing/src/framesync64.c) with
// an attachable interface: FrameSynchronizer calls OnSample for every sample
// Execute processes (a replayed detector tail is reported again when it is
// replayed) and OnFrame after every completed frame, valid or not; a frame
// cut short by an explicit Reset produces no OnFrame call. Both happen only
// when a non-nil TraceSink is attached via SetTraceSink — a single
// nil check on the hot path when it isn't.
type TraceSink interface {
	OnSample(x complex64)
	OnFrame(stats FramestatsView)
}

// FileTraceSink writes a CSV trace of captured samples and a timestamped
// one-line-per-frame stats summary, the same spirit as the original's
// DEBUG_FILENAME script dump but as plain CSV for offline plotting. It
// writes to the io.Writers it is given and creates no files itself; the
// per-frame row timestamp is formatted with strftime, the
// timestamp-formatting library this module's teacher repository uses
// (src/xmit.go, src/kissutil.go in doismellburning/samoyed).
type FileTraceSink struct {
	samples io.Writer
	frames  io.Writer
	now     func() time.Time
}

// NewFileTraceSink builds a trace sink writing raw samples to samplesOut
// (may be nil to skip per-sample tracing) and per-frame summaries to
// framesOut (may be nil to skip per-frame tracing).
func NewFileTraceSink(samplesOut, framesOut io.Writer) *FileTraceSink {
	return &FileTraceSink{samples: samplesOut, frames: framesOut, now: time.Now}
}

// OnSample appends one CSV row (real,imag) to the samples stream.
func (t *FileTraceSink) OnSample(x complex64) {
	if t.samples == nil {
		return
	}
	fmt.Fprintf(t.samples, "%g,%g\n", real(x), imag(x))
}

// OnFrame appends one CSV row summarizing a decoded frame, prefixed with a
// strftime-formatted timestamp.
func (t *FileTraceSink) OnFrame(stats FramestatsView) {
	if t.frames == nil {
		return
	}
	stamp, err := strftime.Format("%Y-%m-%dT%H:%M:%S", t.now())
	if err != nil {
		stamp = t.now().UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(t.frames, "%s,%g,%g,%g,%s,%s,%s\n",
		stamp, stats.Rssi, stats.Cfo, stats.Evm,
		stats.ModScheme, stats.Check, stats.Fec1)
}
