package tonemodem

// Config 结构体用于集中管理调制解调系统的可调参数
// 注意：协议本身的常量 (载波数、功率阈值、帧结构) 不在这里，
// 那些是收发双方的固定契约，改了就解不出对端的数据了
type Config struct {
	// --- 音频 ---
	Audio struct {
		SampleRate int    // 采样率 (Hz)。协议约定 44100
		DeviceName string // 音频设备名的子串，空表示用默认设备
		ChunkSize  int    // 回放模式每次读取的采样数
	}

	// --- 载波搜索 (锁定前的诊断) ---
	// 解码器自己会盲捕获，这里的频谱分析只用来在锁定前
	// 报告检测到的导频频率和推算的符号窗口，方便排查
	Search struct {
		Enabled      bool    // 是否启用锁定前的频谱诊断
		FFTSize      int     // FFT 点数 (例如 4096)，决定频率分辨率
		MinFrequency float64 // 搜索下限 (Hz)，屏蔽低频底噪
		MaxFrequency float64 // 搜索上限 (Hz)
		MinMagnitude float64 // 归一化幅度低于此值视为噪声，不报告
	}

	// --- 电台控制 (CI-V) ---
	Radio struct {
		Port     string // 串口设备路径，空表示不连电台
		BaudRate int    // 波特率
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Audio.SampleRate = 44100
	cfg.Audio.DeviceName = ""
	cfg.Audio.ChunkSize = 1024

	// 前导符号是满幅纯导频，44100/20 = 2205 Hz 附近
	cfg.Search.Enabled = true
	cfg.Search.FFTSize = 4096
	cfg.Search.MinFrequency = 1000.0
	cfg.Search.MaxFrequency = 5000.0
	cfg.Search.MinMagnitude = 0.05

	cfg.Radio.Port = ""
	cfg.Radio.BaudRate = 115200

	return cfg
}
