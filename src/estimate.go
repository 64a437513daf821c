package framesync

// captureEstimates reads the detector's one-shot timing/frequency/phase/gain
// estimate and programs the matched filter and mixer from it, then advances
// the state machine into RX_PREAMBLE. Called exactly once per detection,
// from Execute's DETECT case.
//
// Per spec.md §9 Open Question 1, pfb_index is always programmed to 0: the
// detector's tau_hat is retained on FramestatsView-adjacent fields for
// diagnostics, but the fractional-delay branch selection it would otherwise
// drive is not implemented, matching DESIGN.md's recorded decision.
func (f *FrameSynchronizer) captureEstimates() {
	f.tauHat = f.detector.GetTau()
	f.gammaHat = f.detector.GetGamma()
	f.dphiHat = f.detector.GetDphi()
	f.phiHat = f.detector.GetPhi()

	f.mf.SetScale(0.5 / f.gammaHat)
	f.pfbIndex = 0

	f.mixer.SetFrequency(f.dphiHat)
	f.mixer.SetPhase(f.phiHat)

	f.state = stateRxPreamble
	f.preambleCounter = 0
	f.mfCounter = 0
}
