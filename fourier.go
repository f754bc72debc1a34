package tonemodem

import (
	"math"
)

const (
	// BitCount 每个符号承载的比特数，同时也是载波数量
	BitCount = 9
	// SampleCountMin 解析 9 个载波所需的最少采样点数 (2*9+1)
	SampleCountMin = BitCount*2 + 1
)

// nsin 以"圈"为单位的正弦 (参数 1.0 对应一个完整周期)
func nsin(f float64) float64 {
	return math.Sin(f * 2 * math.Pi)
}

// ncos 以"圈"为单位的余弦
func ncos(f float64) float64 {
	return nsin(f + 0.25)
}

// sincosToPhase 将 sin/cos 相关分量转换为相位
// 返回值以"圈"为单位，范围 (-0.5, 0.5]
func sincosToPhase(x, y float64) float64 {
	return math.Atan2(y, x) / (2 * math.Pi)
}

// FourierAnalyzer 针对固定载波组的逐采样相关器
// 通常大家会用 FFT 并由采样数反推频点（或反过来），
// 但这里载波数量是协议常量 (9)，而窗口长度在运行时被时钟恢复不断微调，
// 所以直接对每个载波累加 sin/cos 相关值更合适
type FourierAnalyzer struct {
	i           int // 当前窗口内的采样索引
	SampleCount int // 窗口长度 (每符号采样数)，必须 >= SampleCountMin
	// 每个载波一对 (sin, cos) 相关累加器
	// 载波 f 的频率为每窗口 (f+1) 个周期
	sincos [BitCount][2]float64
}

// AddSample 送入一个归一化到 [0,1] 的采样
// 返回 true 表示当前窗口已满，可调用 ToPower 取结果
// 增益 25/SampleCount 使满幅单音的功率落在 1 附近
func (fa *FourierAnalyzer) AddSample(sample float64) bool {
	for f := 0; f < BitCount; f++ {
		i := float64((f+1)*fa.i) / float64(fa.SampleCount)
		fa.sincos[f][0] += nsin(i) * sample * 25 / float64(fa.SampleCount)
		fa.sincos[f][1] += ncos(i) * sample * 25 / float64(fa.SampleCount)
	}
	fa.i++
	return fa.i >= fa.SampleCount
}

// ToPower 输出每个载波的功率
// 注意：结果是幅度的平方，没有开方，阈值判定直接比较平方值
func (fa *FourierAnalyzer) ToPower(out []float64) {
	for f := 0; f < BitCount; f++ {
		out[f] = fa.sincos[f][0]*fa.sincos[f][0] + fa.sincos[f][1]*fa.sincos[f][1]
	}
}

// Phase 返回载波 f 的瞬时相位 (单位: 圈)
func (fa *FourierAnalyzer) Phase(f int) float64 {
	return sincosToPhase(fa.sincos[f][0], fa.sincos[f][1])
}

// Reset 清零累加器和采样索引
// 每个完成的窗口必须且只能调用一次
func (fa *FourierAnalyzer) Reset() {
	for f := range fa.sincos {
		fa.sincos[f][0] = 0
		fa.sincos[f][1] = 0
	}
	fa.i = 0
}
