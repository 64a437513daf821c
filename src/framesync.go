package framesync

import "fmt"

// Package framesync implements a burst frame synchronizer for a fixed
// 64-byte-payload packet radio waveform: p/n preamble detection, one-shot
// timing/frequency/phase/gain estimate capture, matched-filter resampling,
// pilot-aided residual carrier correction, and QPSK/Golay(24,12)/CRC-24
// payload decoding.
//
// Ported from liquid-dsp's framesync64 object
// (_examples/original_source/src/framing/src/framesync64.c), kept in this
// pack's original_source/. See SPEC_FULL.md and DESIGN.md for the full
// expansion and grounding ledger.

// state is FrameSynchronizer's top-level phase. It advances monotonically
// DETECT -> RX_PREAMBLE -> RX_PAYLOAD -> DETECT (spec.md §3 Invariants).
type state int

const (
	stateDetect state = iota
	stateRxPreamble
	stateRxPayload
)

func (s state) String() string {
	switch s {
	case stateDetect:
		return "DETECT"
	case stateRxPreamble:
		return "RX_PREAMBLE"
	case stateRxPayload:
		return "RX_PAYLOAD"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Filter/oversampling parameters shared by the detector and matched filter:
// k=2 samples/symbol, m=3 symbols of matched-filter delay.
const (
	frameK = pfbSamplesPerSym
	frameM = pfbDelaySymbols
)

// FrameSynchronizer is the single-owner, non-concurrent-safe core state
// machine described by spec.md §3-§5. Create with NewFrameSynchronizer,
// drive with Execute, and optionally attach a TraceSink with SetTraceSink.
type FrameSynchronizer struct {
	state state

	preamblePN [64]complex64
	preambleRx [64]complex64
	payloadRx  [pilotFrameLen]complex64
	payloadSym [pilotPayloadLen]complex64
	payloadDec [packetPayloadBytes]byte

	tauHat, dphiHat, phiHat, gammaHat float64

	preambleCounter int
	payloadCounter  int
	mfCounter       int
	pfbIndex        int

	detector    *Detector
	mf          *PolyphaseMatchedFilter
	mixer       *Nco
	pilot       *PilotSync
	packetModem *PacketModem

	// equalizer is reserved for a future revision (liquid's framesync64
	// carries a commented-out eqlms_cccf equalizer field trained on the
	// p/n preamble). Never allocated, never touched on the sample path;
	// see SPEC_FULL.md §12.
	equalizer *PolyphaseMatchedFilter

	framestats FramestatsView
	sink       FrameSink
	traceSink  TraceSink
}

// NewFrameSynchronizer builds a frame synchronizer that delivers decoded
// frames to sink. sink may be nil to run the pipeline without a consumer
// (useful for benchmarking the sample path alone).
func NewFrameSynchronizer(sink FrameSink) (*FrameSynchronizer, error) {
	pn, err := PreamblePN()
	if err != nil {
		return nil, fmt.Errorf("framesync: synthesizing p/n preamble: %w", err)
	}

	detector, err := NewDetector(pn, frameK)
	if err != nil {
		return nil, fmt.Errorf("framesync: building detector: %w", err)
	}

	pilot, err := NewPilotSync(pilotPayloadLen, pilotSpacing)
	if err != nil {
		return nil, fmt.Errorf("framesync: building pilot synchronizer: %w", err)
	}
	if pilot.FrameLen() != pilotFrameLen {
		panic("framesync: pilot synchronizer frame length invariant violated")
	}

	modem, err := NewPacketModem()
	if err != nil {
		return nil, fmt.Errorf("framesync: building packet modem: %w", err)
	}
	if modem.FrameLen() != packetSymbols {
		panic("framesync: packet modem frame length invariant violated")
	}

	f := &FrameSynchronizer{
		preamblePN:  pn,
		detector:    detector,
		mf:          NewPolyphaseMatchedFilter(),
		mixer:       NewNco(),
		pilot:       pilot,
		packetModem: modem,
		sink:        sink,
	}
	f.Reset()
	return f, nil
}

// SetTraceSink attaches (or, with nil, detaches) an optional debug/trace
// hook. See trace.go and spec.md §9.
func (f *FrameSynchronizer) SetTraceSink(t TraceSink) {
	f.traceSink = t
}

// State returns the synchronizer's current phase, mostly useful for tests
// and the trace sink.
func (f *FrameSynchronizer) State() string {
	return f.state.String()
}

// PreamblePN returns the fixed 64-symbol p/n preamble this synchronizer was
// built with (spec.md's P/N determinism property).
func (f *FrameSynchronizer) PreamblePN() [64]complex64 {
	return f.preamblePN
}

// Execute consumes samples in order, invoking the attached FrameSink (and
// TraceSink, if any) synchronously zero or more times. It must not be
// called re-entrantly from within a sink callback (spec.md §5); buffer and
// call again instead.
//
// Internally, the detector's buffered tail on a detection boundary is
// drained through an explicit queue rather than by re-entering Execute
// recursively, per spec.md §9's design note — this bounds the call stack
// regardless of how many detections occur in one Execute call.
func (f *FrameSynchronizer) Execute(samples []complex64) {
	queue := make([]complex128, len(samples))
	for i, s := range samples {
		queue[i] = complex128(s)
	}

	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]

		if f.traceSink != nil {
			f.traceSink.OnSample(complex64(x))
		}

		switch f.state {
		case stateDetect:
			tail, detected := f.detector.Execute(x)
			if detected {
				f.captureEstimates()
				if len(tail) > 0 {
					queue = append(append(make([]complex128, 0, len(tail)+len(queue)), tail...), queue...)
				}
			}
		case stateRxPreamble:
			f.stepPreamble(x)
		case stateRxPayload:
			f.stepPayload(x)
		default:
			panic(fmt.Sprintf("framesync: unreachable state %s", f.state))
		}
	}
}

// Reset returns the synchronizer to its initial DETECT state, clearing all
// subobject filter/oscillator/correlator history (spec.md §4.1).
func (f *FrameSynchronizer) Reset() {
	f.detector.Reset()
	f.mixer.Reset()
	f.mf.Reset()

	f.state = stateDetect
	f.preambleCounter = 0
	f.payloadCounter = 0
	f.mfCounter = 0
	f.pfbIndex = 0

	f.framestats.Evm = 0
}

// step performs one sample's mix-down + matched-filter push/execute +
// 2:1 decimation (spec.md §4.3). It is identical in RX_PREAMBLE and
// RX_PAYLOAD; only the caller's use of the emitted symbol differs.
func (f *FrameSynchronizer) step(x complex128) (y complex128, available bool) {
	v := f.mixer.MixDown(x)
	f.mixer.Advance()

	f.mf.Push(v)
	y = f.mf.Execute(f.pfbIndex)

	f.mfCounter++
	available = f.mfCounter == 1
	f.mfCounter %= 2
	return y, available
}
