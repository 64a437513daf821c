package framesync

import "math"

// stepPayload runs one RX_PAYLOAD sample through the mixer/matched filter
// and collects recovered payload symbols until a full 630-symbol block
// (600 data + 30 pilots) has arrived, then hands off to finishFrame
// (spec.md §4.5).
func (f *FrameSynchronizer) stepPayload(x complex128) {
	y, available := f.step(x)
	if !available {
		return
	}

	f.payloadRx[f.payloadCounter] = complex64(y)
	f.payloadCounter++

	if f.payloadCounter == pilotFrameLen {
		f.finishFrame()
	}
}

// finishFrame runs pilot-aided residual correction and packet demodulation
// over the just-collected payload block, populates FramestatsView, invokes
// the sink, and resets back to DETECT — whether or not the frame validated
// (spec.md §4.5: "a failed check still produces a callback; it is the
// sink's job to look at headerValid/payloadValid").
func (f *FrameSynchronizer) finishFrame() {
	f.payloadSym = f.pilot.Execute(f.payloadRx)

	block, ok := f.packetModem.Decode(f.payloadSym)
	f.payloadDec = block

	// header and payload share one CRC-24/Golay(24,12) check over the whole
	// 72-byte block (spec.md §9 Open Question 3): there is no separate
	// header integrity check, so headerValid and payloadValid are always
	// equal.
	f.framestats = FramestatsView{
		Evm:          0,
		Rssi:         float32(20 * math.Log10(f.gammaHat)),
		Cfo:          float32(f.mixer.CurrentFrequency()),
		Framesyms:    f.payloadSym[:],
		NumFramesyms: pilotPayloadLen,
		ModScheme:    ModSchemeQPSK,
		ModBps:       2,
		Check:        CheckCRC24,
		Fec0:         FecNone,
		Fec1:         FecGolay2412,
	}

	if f.traceSink != nil {
		f.traceSink.OnFrame(f.framestats)
	}

	if f.sink != nil {
		header := f.payloadDec[:8]
		payload := f.payloadDec[8:]
		f.sink.OnFrame(header, ok, payload, ok, f.framestats)
	}

	f.Reset()
}
