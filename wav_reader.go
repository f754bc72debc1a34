package tonemodem

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WavReader 简单的 WAV 读取器 (仅支持 32-bit PCM)
// 头部的长度字段按协议约定是不可信的占位值，
// 所以 data 块一律读到流结束为止，不看声明的大小
type WavReader struct {
	file       *os.File
	r          *bufio.Reader
	SampleRate int
	Channels   int
}

// NewWavReader 打开 WAV 文件并解析到 data 块开头
func NewWavReader(filename string) (*WavReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	wr, err := ParseWavHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	wr.file = f
	return wr, nil
}

// ParseWavHeader 从流中解析 WAV 头，停在 data 块的第一个采样上
func ParseWavHeader(r io.Reader) (*WavReader, error) {
	br := bufio.NewReader(r)

	riffHeader := make([]byte, 12)
	if _, err := io.ReadFull(br, riffHeader); err != nil {
		return nil, err
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid wav file")
	}

	var channels, sampleRate, bitsPerSample int
	foundFmt := false

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(br, chunkHeader); err != nil {
			return nil, fmt.Errorf("invalid wav file: missing data chunk")
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		// Pad byte if chunk size is odd
		padding := int64(chunkSize % 2)

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too small")
			}
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(br, fmtData); err != nil {
				return nil, err
			}
			if padding > 0 {
				if _, err := br.Discard(1); err != nil {
					return nil, err
				}
			}
			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, fmt.Errorf("invalid wav file: data before fmt")
			}
			if bitsPerSample != 32 {
				return nil, fmt.Errorf("only 32-bit wav supported, got %d", bitsPerSample)
			}
			if channels < 1 {
				return nil, fmt.Errorf("invalid channel count %d", channels)
			}
			return &WavReader{
				r:          br,
				SampleRate: sampleRate,
				Channels:   channels,
			}, nil
		default:
			// 跳过未知块，块大小这里还是可信的 (占位只用在 RIFF/data 上)
			if _, err := br.Discard(int(chunkSize) + int(padding)); err != nil {
				return nil, err
			}
		}
	}
}

// NewRawSampleReader 把无头的 32-bit PCM 流包装成读取器
// 解码管道用：头部剥离是外部的事，解码器只吃裸采样
func NewRawSampleReader(r io.Reader) *WavReader {
	return &WavReader{
		r:          bufio.NewReader(r),
		SampleRate: 44100,
		Channels:   1,
	}
}

// ReadSamples 读取最多 count 个采样并归一化到 [-1, 1)
// 多声道时只取第一个声道
// 流结束时返回已读到的部分和 io.EOF
func (r *WavReader) ReadSamples(count int) ([]float64, error) {
	frameSize := 4 * r.Channels
	buf := make([]byte, count*frameSize)

	n, err := io.ReadFull(r.r, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err != nil && err != io.EOF {
		return nil, err
	}

	numFrames := n / frameSize
	if numFrames == 0 {
		return nil, io.EOF
	}

	out := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		offset := i * frameSize
		val := int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))
		out[i] = float64(val) / 0x80000000
	}
	return out, err
}

// Close 关闭底层文件 (仅文件模式需要)
func (r *WavReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
