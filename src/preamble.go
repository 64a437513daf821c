package framesync

// stepPreamble runs one RX_PREAMBLE sample through the mixer/matched filter
// and, once the filter's group delay has flushed, collects the recovered
// preamble symbols (spec.md §4.4). Nothing else in the package reads
// preambleRx (the trace sink does not receive it either) — detection-time
// estimates already come from the detector's own correlation window — but
// filling it keeps parity with
// framesync64.c's behavior of writing every preamble symbol it receives.
func (f *FrameSynchronizer) stepPreamble(x complex128) {
	y, available := f.step(x)
	if !available {
		return
	}

	if f.preambleCounter >= 2*frameM {
		f.preambleRx[f.preambleCounter-2*frameM] = complex64(y)
	}
	f.preambleCounter++

	if f.preambleCounter == 64+2*frameM {
		f.state = stateRxPayload
		f.payloadCounter = 0
	}
}
