package tonemodem

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// SpectrumAnalyzer 用于频谱分析和峰值检测
// 解码器自己会盲捕获窗口长度，这里的 FFT 分析只作诊断：
// 在锁定前对着同步前导找主频，报告导频频率和推算的符号窗口
type SpectrumAnalyzer struct {
	SampleRate float64
	FFTSize    int
	Window     []float64
}

// NewSpectrumAnalyzer 创建新的频谱分析器
func NewSpectrumAnalyzer(sampleRate float64, fftSize int) *SpectrumAnalyzer {
	// 汉宁窗: 0.5 * (1 - cos(2*PI*n / (N-1)))
	window := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &SpectrumAnalyzer{
		SampleRate: sampleRate,
		FFTSize:    fftSize,
		Window:     window,
	}
}

// FindDominantFrequency 计算当前音频块的主频
// 返回主频 (Hz) 和对应的幅度
// minFreq, maxFreq: 限制搜索范围，避开低频底噪
func (sa *SpectrumAnalyzer) FindDominantFrequency(samples []float64, minFreq, maxFreq float64) (float64, float64) {
	if len(samples) < sa.FFTSize {
		return 0, 0
	}

	// 1. 应用窗函数
	input := make([]complex128, sa.FFTSize)
	for i := 0; i < sa.FFTSize; i++ {
		input[i] = complex(samples[i]*sa.Window[i], 0)
	}

	// 2. 执行 FFT
	spectrum := fft.FFT(input)

	// 3. 在限定频段内找幅度最大的分量
	maxMag := 0.0
	maxIndex := 0

	binWidth := sa.SampleRate / float64(sa.FFTSize)

	startIndex := int(minFreq / binWidth)
	endIndex := int(maxFreq / binWidth)

	if startIndex < 1 {
		startIndex = 1
	}
	if endIndex > len(spectrum)/2 {
		endIndex = len(spectrum) / 2
	}

	mags := make([]float64, len(spectrum)/2+1)

	for i := startIndex; i < endIndex; i++ {
		mag := cmplx.Abs(spectrum[i])
		mags[i] = mag
		if mag > maxMag {
			maxMag = mag
			maxIndex = i
		}
	}

	// 4. 抛物线插值，用峰值和左右相邻点估算真实峰位
	// p = 0.5 * (alpha - gamma) / (alpha - 2*beta + gamma)
	var freq float64
	if maxIndex > 0 && maxIndex < len(mags)-1 {
		alpha := mags[maxIndex-1]
		beta := mags[maxIndex]
		gamma := mags[maxIndex+1]

		denom := alpha - 2*beta + gamma
		if denom != 0 {
			p := 0.5 * (alpha - gamma) / denom
			freq = (float64(maxIndex) + p) * binWidth
		} else {
			freq = float64(maxIndex) * binWidth
		}
	} else {
		freq = float64(maxIndex) * binWidth
	}

	return freq, maxMag
}

// EstimateSymbolWindow 对着同步前导估算符号窗口
// 前导符号是纯导频，一个窗口正好一个周期，所以
// 窗口长度 ~= 采样率 / 导频频率
// 返回 (窗口长度估计, 导频频率, 是否找到足够强的信号)
func (sa *SpectrumAnalyzer) EstimateSymbolWindow(samples []float64, minFreq, maxFreq, minMagnitude float64) (float64, float64, bool) {
	freq, rawMag := sa.FindDominantFrequency(samples, minFreq, maxFreq)
	if freq <= 0 {
		return 0, 0, false
	}
	// 归一化 FFT 幅度
	normalizedMag := rawMag * 2.0 / float64(sa.FFTSize)
	if normalizedMag < minMagnitude {
		return 0, 0, false
	}
	return sa.SampleRate / freq, freq, true
}
