package sf2synth

// Block renderer (spec.md §4.5): produce exactly blockSize stereo samples
// per internal pass. Clear accumulators; run every non-Off voice's Block;
// run reverb on the reverb-send accumulator and sum into stereo; run
// chorus on the chorus-send accumulator and sum into stereo; apply master
// gain; advance ticks. Process/WriteFloat/WriteS16 pull from a pending
// buffer with a cur cursor so callers can request arbitrary sample counts
// without being tied to blockSize.

func (s *Synth) renderBlock() {
	for i := 0; i < blockSize; i++ {
		s.accL[i] = 0
		s.accR[i] = 0
		s.sendRev[i] = 0
		s.sendCho[i] = 0
	}

	s.pool.Reap()
	for _, v := range s.pool.Voices() {
		ctrl := s.channels[v.Channel].Snapshot(int(v.Key), v.Velocity)
		v.Block(ctrl, s.accL, s.accR, s.sendRev, s.sendCho)
	}

	if s.reverb != nil {
		for i := 0; i < blockSize; i++ {
			l, r := s.reverb.ProcessSend(float32(s.sendRev[i]))
			s.accL[i] += float64(l)
			s.accR[i] += float64(r)
		}
	}
	if s.chorus != nil {
		for i := 0; i < blockSize; i++ {
			l, r := s.chorus.ProcessSend(float32(s.sendCho[i]))
			s.accL[i] += float64(l)
			s.accR[i] += float64(r)
		}
	}

	gain := s.settings.Gain
	for i := 0; i < blockSize; i++ {
		s.pending = append(s.pending, float32(s.accL[i]*gain), float32(s.accR[i]*gain))
	}
	s.ticks += blockSize
}

// nextFrame returns the next rendered stereo sample pair, rendering a
// fresh block whenever the pending buffer is exhausted.
func (s *Synth) nextFrame() (float32, float32) {
	if s.cur >= len(s.pending) {
		s.pending = s.pending[:0]
		s.cur = 0
		s.renderBlock()
	}
	l, r := s.pending[s.cur], s.pending[s.cur+1]
	s.cur += 2
	return l, r
}

// Ticks returns the number of sample frames rendered since construction.
func (s *Synth) Ticks() uint64 { return s.ticks }

// Process renders interleaved stereo float32 frames into dst (len(dst)
// must be even). Implements audio.SampleSource for live playback.
func (s *Synth) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		l, r := s.nextFrame()
		dst[i] = l
		dst[i+1] = r
	}
}

// WriteFloat fills left/right with min(ceil(len(left)/lstride),
// ceil(len(right)/rstride)) rendered frames, matching the dual-slice/stride
// contract of the original cgo binding's fluid_synth_write_float wrapper:
// for interleaved stereo, pass the same backing array as left and
// right[1:] with lstride = rstride = 2.
func (s *Synth) WriteFloat(left, right []float32, lstride, rstride int) {
	nframes := (len(left) + lstride - 1) / lstride
	rframes := (len(right) + rstride - 1) / rstride
	if rframes < nframes {
		nframes = rframes
	}
	for i := 0; i < nframes; i++ {
		l, r := s.nextFrame()
		left[i*lstride] = l
		right[i*rstride] = r
	}
}

// WriteS16 is WriteFloat's dithered 16-bit integer counterpart
// (SPEC_FULL §D). A simple rectangular dither (one uniform draw of about
// ±½ LSB per sample) is added before truncation to avoid quantization
// distortion on quiet passages.
func (s *Synth) WriteS16(left, right []int16, lstride, rstride int) {
	nframes := (len(left) + lstride - 1) / lstride
	rframes := (len(right) + rstride - 1) / rstride
	if rframes < nframes {
		nframes = rframes
	}
	for i := 0; i < nframes; i++ {
		l, r := s.nextFrame()
		left[i*lstride] = floatToS16Dithered(l, &s.ditherL)
		right[i*rstride] = floatToS16Dithered(r, &s.ditherR)
	}
}

func floatToS16Dithered(x float32, state *uint32) int16 {
	*state = *state*1664525 + 1013904223
	dither := (float32(*state>>8&0xffff)/65536 - 0.5) / 32768
	v := float64(x+dither) * 32767
	switch {
	case v > 32767:
		v = 32767
	case v < -32768:
		v = -32768
	}
	return int16(v)
}
