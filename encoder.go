package tonemodem

import (
	"bufio"
	"bytes"
	"io"
)

const (
	// EncoderSymbolLen 发送端的符号长度
	// 比最小值多一个采样，给接收端的窗口估计留点余量
	EncoderSymbolLen = SampleCountMin + 1
	// SyncAmplitude 前导/同步符号的幅度 (最多单音，可以打满)
	SyncAmplitude = 1.0
	// DataAmplitude 负载符号的幅度
	// 最多 9 个正弦叠加，压低幅度避免削波，削波和太小声一样会恶化信号
	DataAmplitude = 0.16
	// PreambleSymbols 同步前导的符号个数
	PreambleSymbols = 8
)

// SampleWriter 接收合成好的音频采样
type SampleWriter interface {
	WriteSample(x float64) error
}

// SampleBuffer 把采样收集到内存里，用于回环测试和扬声器播放
type SampleBuffer struct {
	Samples []float64
}

func (b *SampleBuffer) WriteSample(x float64) error {
	b.Samples = append(b.Samples, x)
	return nil
}

// Encoder 把字节流合成为多音符号波形
type Encoder struct {
	out SampleWriter
	// SymbolLen 每符号的采样数
	SymbolLen int
}

// NewEncoder 创建编码器，使用协议默认的符号长度
func NewEncoder(out SampleWriter) *Encoder {
	return &Encoder{
		out:       out,
		SymbolLen: EncoderSymbolLen,
	}
}

// WriteSample 写出一个采样，越界部分削波到 [-1,1]
func (e *Encoder) WriteSample(x float64) error {
	if x > 1 {
		x = 1
	}
	if x < -1 {
		x = -1
	}
	return e.out.WriteSample(x)
}

// WriteSymbol 合成一个符号：value 的每个置位比特 b 对应
// 频率为每窗口 (9-b) 个周期的正弦，全部叠加后乘以 amplitude
// 注意：最高位比特用最低频载波
// amplitude 由调用方显式传入，同步段用 SyncAmplitude，负载段用 DataAmplitude
func (e *Encoder) WriteSymbol(value uint16, amplitude float64) error {
	for t := 0; t < e.SymbolLen; t++ {
		sample := 0.0
		for b := 0; b < BitCount; b++ {
			if value&(1<<b) == 0 {
				continue
			}
			sample += nsin(float64((BitCount-b)*t) / float64(e.SymbolLen))
		}
		if err := e.WriteSample(sample * amplitude); err != nil {
			return err
		}
	}
	return nil
}

// EncodeStream 写出一个完整帧：
// 两个静音符号 (基线) -> 八个纯导频符号 (同步前导) ->
// 起始符号 '>' -> 每个输入字节一个符号 -> 两个静音符号 (终止)
func (e *Encoder) EncodeStream(r io.Reader) error {
	// 无数据段，接收端在这里建立基线
	if err := e.WriteSymbol(0, SyncAmplitude); err != nil {
		return err
	}
	if err := e.WriteSymbol(0, SyncAmplitude); err != nil {
		return err
	}
	// 同步前导：接收端靠它确定时序、相位、幅度和极性
	for i := 0; i < PreambleSymbols; i++ {
		if err := e.WriteSymbol(SyncSignal, SyncAmplitude); err != nil {
			return err
		}
	}
	if err := e.WriteSymbol(StartByte|SyncSignal, DataAmplitude); err != nil {
		return err
	}
	br := bufio.NewReader(r)
	for {
		ch, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := e.WriteSymbol(uint16(ch)|SyncSignal, DataAmplitude); err != nil {
			return err
		}
	}
	if err := e.WriteSymbol(0, DataAmplitude); err != nil {
		return err
	}
	return e.WriteSymbol(0, DataAmplitude)
}

// EncodeBytes 编码一段内存数据 (EncodeStream 的便捷包装)
func (e *Encoder) EncodeBytes(data []byte) error {
	return e.EncodeStream(bytes.NewReader(data))
}
