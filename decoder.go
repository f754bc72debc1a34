package tonemodem

import (
	"math"
)

// DecoderState 解码状态机的状态
type DecoderState int

const (
	StateInit DecoderState = iota
	StateDetectPolarity
	StateDetectWaveFirstHalf
	StateDetectWaveSecondHalf
	StateCalibrate
	StateDecodeData
	StateEOF
)

// String 返回状态的显示名称
// 用穷举 switch 而不是并行数组，保证和枚举不会脱节
func (s DecoderState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDetectPolarity:
		return "DETECT_POLARITY"
	case StateDetectWaveFirstHalf:
		return "DETECT_WAVE_FIRST_HALF"
	case StateDetectWaveSecondHalf:
		return "DETECT_WAVE_SECOND_HALF"
	case StateCalibrate:
		return "CALIBRATE"
	case StateDecodeData:
		return "DECODE_DATA"
	case StateEOF:
		return "EOF"
	}
	return "UNKNOWN"
}

// Decode 的哨兵返回值，非负值是解出的字节
const (
	ResultEOF    = -1 // 码流结束
	ResultNoData = -2 // 窗口未满，继续喂采样
	ResultError  = -3 // 不变量被破坏 (归一化范围退化)
)

const (
	// SignalStrength 内部幅度刻度，[-1,1] 的采样映射到 [0,SignalStrength]
	SignalStrength = 1024
	// TimingSignalThreshold 极性检测的触发阈值 (SignalStrength 刻度)
	TimingSignalThreshold = 64
	// PowerThreshold 载波存在判定的功率阈值 (0.5 幅度的平方)
	PowerThreshold = 0.25
	// StartByte 负载起始标志
	StartByte = '>'
	// SyncSignal 导频位 (9 比特符号的最高位)
	SyncSignal = 0x100
)

// Decoder 盲同步解码器：从采样流中自行获取时序、极性和幅度，
// 再把每个符号窗口的 9 个载波解调成字节
// 每个流创建一个实例，逐采样调用 Decode
type Decoder struct {
	state    DecoderState
	polarity bool // 检测到的首个跳变方向

	// 最近三次相位测量 (最近的在前)，用于漂移检测
	phase  int
	phase2 int
	phase3 int

	// 仅在捕获阶段更新的幅度统计，锁定后冻结作为归一化范围
	baseline  float64
	signalMax float64
	signalMin float64

	fourier  FourierAnalyzer
	debugger SignalDebugger
}

// NewDecoder 创建解码器，初始状态为 Init
func NewDecoder() *Decoder {
	return &Decoder{debugger: &NoOpDebugger{}}
}

// SetDebugger 挂接调试器 (nil 恢复为 NoOp)
func (d *Decoder) SetDebugger(dbg SignalDebugger) {
	if dbg == nil {
		dbg = &NoOpDebugger{}
	}
	d.debugger = dbg
}

// State 返回当前状态 (诊断用)
func (d *Decoder) State() DecoderState {
	return d.state
}

// WindowLength 返回当前估计的符号窗口长度 (诊断用)
func (d *Decoder) WindowLength() int {
	return d.fourier.SampleCount
}

// updateMagnitude 更新捕获阶段的幅度范围
func (d *Decoder) updateMagnitude(sample float64) {
	if d.signalMax < sample {
		d.signalMax = sample
	}
	if d.signalMin > sample {
		d.signalMin = sample
	}
}

// decodeByte 字节解调：窗口满时把各载波功率阈值化成 9 比特值，
// 并从导频载波提取相位偏移
func (d *Decoder) decodeByte(sample float64) int {
	if !d.fourier.AddSample(sample) {
		return ResultNoData
	}
	var power [BitCount]float64
	d.fourier.ToPower(power[:])
	value := 0
	for f := 0; f < BitCount; f++ {
		if power[f] > PowerThreshold {
			value |= 1 << (BitCount - f - 1)
		}
	}
	if value&SyncSignal != 0 {
		// 最低频载波用作时序基准，它的一个完整波长覆盖整个窗口，
		// 相位偏移可以直接换算成采样数
		phase := d.fourier.Phase(0)
		d.phase = int(math.Round(phase * float64(d.fourier.SampleCount)))
	} else {
		// 全零终止符没有导频，测不了相位
		d.phase = 0
	}
	d.fourier.Reset()
	if value == 0 {
		return ResultEOF
	}
	return value & 0xFF
}

// updateDrift 三次相位测量全部非零且同号时认为是稳定的时钟漂移，
// 用平均值修正窗口长度，并清掉中间槽位避免重复修正；
// 否则只滚动历史
func (d *Decoder) updateDrift() {
	if d.phase != 0 && d.phase2 != 0 && d.phase3 != 0 &&
		(d.phase < 0) == (d.phase2 < 0) && (d.phase2 < 0) == (d.phase3 < 0) {
		d.fourier.SampleCount -= (d.phase + d.phase2 + d.phase3) / 3
		d.phase2 = 0
	} else {
		d.phase3 = d.phase2
		d.phase2 = d.phase
	}
}

// detectWaveFirstHalf 统计采样数直到越过首个半波峰值
func (d *Decoder) detectWaveFirstHalf(sample float64) {
	d.fourier.SampleCount++
	var diff float64
	if d.polarity {
		diff = d.signalMax - sample
	} else {
		diff = sample - d.signalMin
	}
	if diff > d.signalMax-d.signalMin {
		d.state = StateDetectWaveSecondHalf
	}
	d.updateMagnitude(sample)
}

// detectWaveSecondHalf 继续计数直到采样按极性方向穿回中点，
// 完成一个整周期，得到初始窗口长度估计
func (d *Decoder) detectWaveSecondHalf(sample float64) {
	d.fourier.SampleCount++
	d.updateMagnitude(sample)
	if (sample > (d.signalMax+d.signalMin)/2) == d.polarity {
		// 注意：这个估计非常粗糙，后续靠导频相位逐步收敛
		if d.fourier.SampleCount < SampleCountMin {
			d.fourier.SampleCount = SampleCountMin
		}
		d.state = StateCalibrate
		d.phase = 0
		d.phase2 = 0
		d.phase3 = 0
	}
}

// Decode 送入一个 [-1,1] 范围的原始采样
// 返回解出的字节 (0..255) 或哨兵值 ResultNoData / ResultEOF / ResultError
// 采样必须严格按流顺序逐个送入
func (d *Decoder) Decode(raw float64) int {
	sample := (raw + 1) / 2 * SignalStrength
	var fsample float64
	if d.state >= StateCalibrate {
		if d.signalMax == d.signalMin {
			// 捕获流程保证 max > min，走到这里说明状态被外部破坏了
			return ResultError
		}
		fsample = (sample - d.signalMin) / (d.signalMax - d.signalMin)
		if !d.polarity {
			fsample = 1 - fsample
		}
	}
	d.debugger.Record(raw, fsample, d.state, d.fourier.SampleCount, d.phase)
	switch d.state {
	case StateInit:
		d.baseline = sample
		d.state = StateDetectPolarity
		d.fourier.SampleCount = 0
	case StateDetectPolarity:
		diff := sample - d.baseline
		d.updateMagnitude(sample)
		if diff > TimingSignalThreshold || diff < -TimingSignalThreshold {
			d.polarity = diff > 0
			d.state = StateDetectWaveFirstHalf
			d.signalMax = d.baseline
			d.signalMin = d.baseline
			// 触发极性的这个采样同时也是波形的第一个采样，
			// 直接执行下一状态的逻辑，不等下一次调用
			d.detectWaveFirstHalf(sample)
		} else {
			// 缓慢跟随基线，抵抗直流漂移而不误触发
			d.baseline += diff / 8
		}
	case StateDetectWaveFirstHalf:
		d.detectWaveFirstHalf(sample)
	case StateDetectWaveSecondHalf:
		d.detectWaveSecondHalf(sample)
	case StateCalibrate:
		if d.phase < 0 {
			// 相位守卫：消耗多余采样把窗口边界拉回来
			d.phase++
			break
		}
		b := d.decodeByte(fsample)
		if b == ResultEOF {
			// 锁到噪声上了，整个重来
			d.state = StateInit
			break
		}
		if b >= 0 {
			d.updateDrift()
			if b == StartByte {
				d.state = StateDecodeData
			}
			if d.phase > 0 {
				// 窗口边界偏早，立刻多走一步解调把边界推回去
				d.decodeByte(fsample)
			}
		}
	case StateDecodeData:
		if d.phase < 0 {
			d.phase++
			break
		}
		b := d.decodeByte(fsample)
		if b == ResultEOF {
			d.state = StateEOF
		}
		if b >= 0 {
			d.updateDrift()
			if d.phase > 0 {
				d.decodeByte(fsample)
			}
		}
		return b
	case StateEOF:
		return ResultEOF
	}
	return ResultNoData
}
