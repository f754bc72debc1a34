package tonemodem

import (
	"encoding/binary"
	"io"
)

// WAV 头里的占位长度，不回填
// 流可能写到管道上，真实长度在结束前不可知，读取方应当忽略长度字段
const (
	wavPlaceholderRiffSize = 0x80000024
	wavPlaceholderDataSize = 0x80000000
)

// WavWriter 流式 WAV 写入器 (32-bit PCM Mono)
// 与常见实现不同，它不做 Seek 回写，头部长度字段是占位值，
// 因此可以直接写 stdout 这类不可 Seek 的目标
type WavWriter struct {
	w          io.Writer
	sampleRate int
}

// NewWavWriter 创建写入器并立即写出 44 字节头
func NewWavWriter(w io.Writer, sampleRate int) (*WavWriter, error) {
	ww := &WavWriter{w: w, sampleRate: sampleRate}
	if err := ww.writeHeader(); err != nil {
		return nil, err
	}
	return ww, nil
}

func (w *WavWriter) writeHeader() error {
	header := make([]byte, 44)

	// RIFF chunk
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], wavPlaceholderRiffSize)
	copy(header[8:], "WAVE")

	// fmt chunk
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16) // Subchunk1Size (PCM)
	binary.LittleEndian.PutUint16(header[20:], 1)  // AudioFormat (PCM)
	binary.LittleEndian.PutUint16(header[22:], 1)  // Mono
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*4)) // ByteRate
	binary.LittleEndian.PutUint16(header[32:], 4)                      // BlockAlign
	binary.LittleEndian.PutUint16(header[34:], 32)                     // BitsPerSample

	// data chunk
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], wavPlaceholderDataSize)

	_, err := w.w.Write(header)
	return err
}

// WriteSample 写出一个采样，削波到 [-1,1] 后转成 int32 小端
func (w *WavWriter) WriteSample(x float64) error {
	if x > 1 {
		x = 1
	}
	if x < -1 {
		x = -1
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(x*0x7FFFFFFF)))
	_, err := w.w.Write(buf[:])
	return err
}

// WriteSamples 批量写出采样
func (w *WavWriter) WriteSamples(samples []float64) error {
	for _, s := range samples {
		if err := w.WriteSample(s); err != nil {
			return err
		}
	}
	return nil
}
