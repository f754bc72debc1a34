package tonemodem

import (
	"fmt"
	"log"
	"os"
	"time"
)

// ModemSystem 管理整个调制解调系统的生命周期：
// 音频输入 (实时/回放)、解码、录音、编码发送和电台控制
type ModemSystem struct {
	// 配置
	cfg        *Config
	SampleRate int

	// 组件
	civClient    *CIVClient
	decoder      *Decoder
	analyzer     *SpectrumAnalyzer
	audioCapture *AudioCapture
	player       *AudioPlayer
	wavReader    *WavReader
	wavWriter    *WavWriter
	recordHandle *os.File
	debugger     SignalDebugger

	// 状态
	replayFile   string
	recordFile   string
	debugFile    string
	searchBuffer []float64
	searchDone   bool
	eofReported  bool

	// 回调
	OnDataDecoded func(b byte) // 解出一个负载字节
	OnStreamEnd   func()       // 收到终止符号或输入耗尽
}

// NewModemSystem 创建系统实例
func NewModemSystem(cfg *Config) *ModemSystem {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &ModemSystem{
		cfg:        cfg,
		SampleRate: cfg.Audio.SampleRate,
	}
}

// EnableRecording 开启录音 (把输入采样同时写到 WAV 文件)
func (s *ModemSystem) EnableRecording(filename string) {
	s.recordFile = filename
}

// SetReplayFile 设置回放文件 (设置后将进入回放模式)
func (s *ModemSystem) SetReplayFile(filename string) {
	s.replayFile = filename
}

// EnableDebugTrace 开启逐采样 CSV 调试记录
func (s *ModemSystem) EnableDebugTrace(filename string) {
	s.debugFile = filename
}

// Start 启动系统
func (s *ModemSystem) Start() error {
	// 1. 初始化组件
	if s.replayFile != "" {
		// 回放模式：从文件读取采样率
		var err error
		s.wavReader, err = NewWavReader(s.replayFile)
		if err != nil {
			return fmt.Errorf("failed to open replay file: %v", err)
		}
		s.SampleRate = s.wavReader.SampleRate
		fmt.Printf("Mode: REPLAY (%s, %dHz)\n", s.replayFile, s.SampleRate)
	} else if s.cfg.Radio.Port != "" {
		// 实时模式：尝试连接电台
		s.civClient = NewCIVClient(s.cfg.Radio.Port, s.cfg.Radio.BaudRate)
		fmt.Printf("Connecting to radio on %s...\n", s.cfg.Radio.Port)
		if err := s.civClient.Open(); err != nil {
			log.Printf("Warning: Could not open serial port: %v\n", err)
			s.civClient = nil
		} else if freq, err := s.civClient.ReadFrequency(); err == nil {
			fmt.Printf("Radio connected, dial frequency %d Hz\n", freq)
		} else {
			fmt.Println("Serial port opened.")
		}
	}

	s.decoder = NewDecoder()
	s.analyzer = NewSpectrumAnalyzer(float64(s.SampleRate), s.cfg.Search.FFTSize)

	if s.debugFile != "" {
		dbg, err := NewCsvFileDebugger(s.debugFile)
		if err != nil {
			return fmt.Errorf("failed to create debug trace: %v", err)
		}
		s.debugger = dbg
		s.decoder.SetDebugger(dbg)
	}

	// 初始化录音 (仅实时模式有意义，回放模式已有文件)
	if s.recordFile != "" && s.replayFile == "" {
		f, err := os.Create(s.recordFile)
		if err != nil {
			return fmt.Errorf("failed to create wav file: %v", err)
		}
		ww, err := NewWavWriter(f, s.SampleRate)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to write wav header: %v", err)
		}
		s.recordHandle = f
		s.wavWriter = ww
		fmt.Printf("Recording audio to %s\n", s.recordFile)
	}

	// 2. 启动音频流
	if s.replayFile != "" {
		go s.runReplayLoop()
	} else {
		if err := s.startAudioCapture(); err != nil {
			return err
		}
	}

	return nil
}

// Stop 停止系统并释放资源
func (s *ModemSystem) Stop() {
	if s.audioCapture != nil {
		s.audioCapture.Stop()
	}
	if s.player != nil {
		s.player.Close()
	}
	if s.wavWriter != nil && s.recordHandle != nil {
		fmt.Println("\nSaving recording...")
		s.recordHandle.Close()
		fmt.Println("Recording saved.")
	}
	if s.wavReader != nil {
		s.wavReader.Close()
	}
	if s.civClient != nil {
		s.civClient.Close()
	}
	if s.debugger != nil {
		s.debugger.Close()
	}
}

// Transmit 编码并播放一帧数据
// 连接了电台时自动按下/松开 PTT
func (s *ModemSystem) Transmit(data []byte) error {
	buf := &SampleBuffer{}
	enc := NewEncoder(buf)
	if err := enc.EncodeBytes(data); err != nil {
		return err
	}

	if s.player == nil {
		var err error
		s.player, err = NewAudioPlayer(s.SampleRate, s.cfg.Audio.DeviceName)
		if err != nil {
			return fmt.Errorf("failed to init playback: %v", err)
		}
	}

	if s.civClient != nil {
		if err := s.civClient.SetPTT(true); err != nil {
			log.Printf("Warning: PTT on failed: %v", err)
		}
		defer func() {
			if err := s.civClient.SetPTT(false); err != nil {
				log.Printf("Warning: PTT off failed: %v", err)
			}
		}()
	}

	fmt.Printf("\n[TX]: %d bytes (%d samples)\n", len(data), len(buf.Samples))
	return s.player.Play(buf.Samples)
}

// 内部：处理一批采样
func (s *ModemSystem) processSamples(samples []float64) {
	// 录音
	if s.wavWriter != nil {
		_ = s.wavWriter.WriteSamples(samples)
	}

	// 锁定前的载波搜索诊断
	if s.cfg.Search.Enabled && !s.searchDone && s.decoder.State() < StateCalibrate {
		s.runCarrierSearch(samples)
	}

	for _, v := range samples {
		b := s.decoder.Decode(v)
		if b >= 0 && s.OnDataDecoded != nil {
			s.OnDataDecoded(byte(b))
		}
		if b == ResultEOF && s.decoder.State() == StateEOF {
			s.reportStreamEnd()
			return
		}
	}
}

// 内部：锁定前对着同步前导做一次频谱分析
// 只是诊断输出，解码器的窗口估计不依赖这里的结果
func (s *ModemSystem) runCarrierSearch(samples []float64) {
	s.searchBuffer = append(s.searchBuffer, samples...)
	if len(s.searchBuffer) < s.cfg.Search.FFTSize {
		return
	}

	window, freq, ok := s.analyzer.EstimateSymbolWindow(
		s.searchBuffer,
		s.cfg.Search.MinFrequency,
		s.cfg.Search.MaxFrequency,
		s.cfg.Search.MinMagnitude,
	)
	if ok {
		fmt.Printf("[SEARCH] Pilot carrier at %.1f Hz, implied symbol window %.1f samples\n", freq, window)
		s.searchDone = true
		s.searchBuffer = nil
	} else {
		// 还没等到前导，丢掉旧数据接着听
		s.searchBuffer = s.searchBuffer[:0]
	}
}

func (s *ModemSystem) reportStreamEnd() {
	if s.eofReported {
		return
	}
	s.eofReported = true
	if s.OnStreamEnd != nil {
		s.OnStreamEnd()
	}
}

// 内部：启动实时音频捕获
func (s *ModemSystem) startAudioCapture() error {
	var err error
	s.audioCapture, err = NewAudioCapture(s.SampleRate, s.cfg.Audio.DeviceName, func(samples []float32) {
		buf := make([]float64, len(samples))
		for i, v := range samples {
			buf[i] = float64(v)
		}
		s.processSamples(buf)
	})
	if err != nil {
		return fmt.Errorf("failed to init audio capture: %v", err)
	}
	return s.audioCapture.Start()
}

// 内部：运行回放循环
func (s *ModemSystem) runReplayLoop() {
	chunkSize := s.cfg.Audio.ChunkSize
	// 计算 ticker 间隔以模拟实时速度
	interval := time.Second * time.Duration(chunkSize) / time.Duration(s.SampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Println("Replay started...")
	for range ticker.C {
		samples, err := s.wavReader.ReadSamples(chunkSize)
		if len(samples) > 0 {
			s.processSamples(samples)
		}
		if err != nil {
			fmt.Println("\nEnd of file.")
			s.reportStreamEnd()
			return
		}
		if s.eofReported {
			return
		}
	}
}
