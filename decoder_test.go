package tonemodem

import (
	"bytes"
	"testing"
)

// 编码一帧数据，返回 [-1,1] 的采样序列
func encodeFrame(t *testing.T, data []byte) []float64 {
	t.Helper()
	buf := &SampleBuffer{}
	enc := NewEncoder(buf)
	if err := enc.EncodeBytes(data); err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}
	return buf.Samples
}

// 逐采样解码，返回解出的字节和是否到达 EOF
func decodeAll(d *Decoder, samples []float64) ([]byte, bool) {
	var out []byte
	for _, v := range samples {
		b := d.Decode(v)
		if b >= 0 {
			out = append(out, byte(b))
		}
		if b == ResultEOF && d.State() == StateEOF {
			return out, true
		}
	}
	return out, false
}

func TestDecoder_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"SingleByte", []byte{0x48}},
		{"Text", []byte("Hello, World!")},
		{"AllByteValues", allByteValues()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			samples := encodeFrame(t, tc.data)
			got, eof := decodeAll(NewDecoder(), samples)
			if !eof {
				t.Fatal("Decoder did not reach EOF")
			}
			if !bytes.Equal(got, tc.data) {
				t.Errorf("Round trip mismatch: sent %d bytes, got %d bytes (%x)", len(tc.data), len(got), got)
			}
		})
	}
}

func allByteValues() []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestDecoder_RoundTripThroughContainer(t *testing.T) {
	// 走一遍完整链路: 编码 -> WAV 容器 -> 读回 -> 解码
	payload := []byte("modem container test")

	var container bytes.Buffer
	ww, err := NewWavWriter(&container, 44100)
	if err != nil {
		t.Fatalf("NewWavWriter failed: %v", err)
	}
	enc := NewEncoder(ww)
	if err := enc.EncodeBytes(payload); err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}

	reader, err := ParseWavHeader(&container)
	if err != nil {
		t.Fatalf("ParseWavHeader failed: %v", err)
	}

	d := NewDecoder()
	var got []byte
	reachedEOF := false
	for !reachedEOF {
		samples, err := reader.ReadSamples(1024)
		if len(samples) == 0 {
			break
		}
		var chunk []byte
		chunk, reachedEOF = decodeAll(d, samples)
		got = append(got, chunk...)
		if err != nil {
			break
		}
	}
	if !reachedEOF {
		t.Fatal("Decoder did not reach EOF")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Container round trip mismatch: got %q", got)
	}
}

func TestDecoder_SingleByteScenario(t *testing.T) {
	// "H" 的帧: 2 个静音符号 + 8 个导频符号 + 起始符号 + 1 个数据符号 + 2 个静音符号
	samples := encodeFrame(t, []byte{0x48})
	wantSymbols := 2 + PreambleSymbols + 1 + 1 + 2
	if len(samples) != wantSymbols*EncoderSymbolLen {
		t.Errorf("Frame length %d samples, expected %d symbols * %d", len(samples), wantSymbols, EncoderSymbolLen)
	}

	got, eof := decodeAll(NewDecoder(), samples)
	if !eof {
		t.Fatal("Decoder did not reach EOF")
	}
	if len(got) != 1 || got[0] != 0x48 {
		t.Errorf("Expected single byte 0x48, got %x", got)
	}
}

func TestDecoder_EOFIdempotent(t *testing.T) {
	samples := encodeFrame(t, []byte("x"))
	d := NewDecoder()
	if _, eof := decodeAll(d, samples); !eof {
		t.Fatal("Decoder did not reach EOF")
	}

	// EOF 是吸收态: 之后无论喂什么都立刻返回 ResultEOF
	for i, v := range []float64{0, 1, -1, 0.5} {
		if b := d.Decode(v); b != ResultEOF {
			t.Errorf("Decode #%d after EOF returned %d, expected ResultEOF", i, b)
		}
	}
	if d.State() != StateEOF {
		t.Errorf("State changed to %s after EOF", d.State())
	}
}

func TestDecoder_PilotBitInvariant(t *testing.T) {
	// 对齐解调帧里的每个符号: 除了前导静音和终止符号，导频位必须置位
	samples := encodeFrame(t, []byte("Hi"))
	symbols := len(samples) / EncoderSymbolLen

	for k := 0; k < symbols; k++ {
		fa := &FourierAnalyzer{SampleCount: EncoderSymbolLen}
		for i := 0; i < EncoderSymbolLen; i++ {
			fa.AddSample((samples[k*EncoderSymbolLen+i] + 1) / 2)
		}
		var power [BitCount]float64
		fa.ToPower(power[:])
		value := 0
		for f := 0; f < BitCount; f++ {
			if power[f] > PowerThreshold {
				value |= 1 << (BitCount - f - 1)
			}
		}

		leadIn := k < 2
		terminator := k >= symbols-2
		if leadIn || terminator {
			if value != 0 {
				t.Errorf("Framing symbol %d demodulated as 0x%03X, expected 0", k, value)
			}
		} else if value&SyncSignal == 0 {
			t.Errorf("Symbol %d (0x%03X) missing pilot bit", k, value)
		}
	}
}

func TestDecoder_DriftCorrection(t *testing.T) {
	// 连续三次同号相位偏移 k 应该让窗口长度收缩约 k，并清掉历史中间槽
	const k = 2
	d := NewDecoder()
	d.fourier.SampleCount = 30

	for i := 0; i < 3; i++ {
		d.phase = k
		d.updateDrift()
	}

	if d.fourier.SampleCount != 30-k {
		t.Errorf("Window length %d after drift correction, expected %d", d.fourier.SampleCount, 30-k)
	}
	if d.phase2 != 0 {
		t.Errorf("Middle history slot %d after correction, expected 0", d.phase2)
	}

	// 反号版本: 窗口变长
	d = NewDecoder()
	d.fourier.SampleCount = 30
	for i := 0; i < 3; i++ {
		d.phase = -k
		d.updateDrift()
	}
	if d.fourier.SampleCount != 30+k {
		t.Errorf("Window length %d after negative drift, expected %d", d.fourier.SampleCount, 30+k)
	}

	// 符号不一致时不修正，只滚动历史
	d = NewDecoder()
	d.fourier.SampleCount = 30
	for _, p := range []int{k, -k, k} {
		d.phase = p
		d.updateDrift()
	}
	if d.fourier.SampleCount != 30 {
		t.Errorf("Window length %d changed on mixed-sign phases", d.fourier.SampleCount)
	}
}

func TestDecoder_FalseLockRetry(t *testing.T) {
	// 校准阶段解出全零符号说明锁到了噪声，必须回到 Init 重新捕获
	d := NewDecoder()
	d.state = StateCalibrate
	d.polarity = true
	d.signalMin = 0
	d.signalMax = SignalStrength
	d.fourier.SampleCount = EncoderSymbolLen

	// 恒定中点电平: 所有载波功率为零 -> 符号 0 -> 假锁
	for i := 0; i < EncoderSymbolLen; i++ {
		if b := d.Decode(0); b != ResultNoData {
			t.Fatalf("Sample %d returned %d, expected ResultNoData", i, b)
		}
	}
	if d.State() != StateInit {
		t.Errorf("State %s after false lock, expected INIT", d.State())
	}
}

func TestDecoder_DegenerateRangeError(t *testing.T) {
	// 归一化范围退化时返回错误哨兵而不是除零
	d := NewDecoder()
	d.state = StateCalibrate
	d.signalMin = 512
	d.signalMax = 512

	if b := d.Decode(0); b != ResultError {
		t.Errorf("Decode returned %d on degenerate range, expected ResultError", b)
	}
}

func TestDecoderState_String(t *testing.T) {
	states := []DecoderState{
		StateInit, StateDetectPolarity, StateDetectWaveFirstHalf,
		StateDetectWaveSecondHalf, StateCalibrate, StateDecodeData, StateEOF,
	}
	seen := map[string]bool{}
	for _, s := range states {
		name := s.String()
		if name == "UNKNOWN" || name == "" {
			t.Errorf("State %d has no display name", s)
		}
		if seen[name] {
			t.Errorf("Duplicate state name %s", name)
		}
		seen[name] = true
	}
	if DecoderState(99).String() != "UNKNOWN" {
		t.Error("Out-of-range state should map to UNKNOWN")
	}
}
