package tonemodem

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// AudioCallback 定义音频数据回调函数类型
type AudioCallback func(samples []float32)

// AudioCapture 管理音频捕获 (实时解码输入)
type AudioCapture struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	SampleRate int
	Callback   AudioCallback
}

// NewAudioCapture 创建新的音频捕获实例
// targetDeviceName 是设备名子串，空则用默认输入设备
func NewAudioCapture(sampleRate int, targetDeviceName string, callback AudioCallback) (*AudioCapture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %v", err)
	}

	ac := &AudioCapture{
		ctx:        ctx,
		SampleRate: sampleRate,
		Callback:   callback,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if targetDeviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(targetDeviceName)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					fmt.Printf("Selected Audio Device: %s\n", info.Name())
					break
				}
			}
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if ac.Callback == nil {
			return
		}
		if len(pInputSamples) == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		ac.Callback(samples)
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: onRecvFrames,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to init device: %v", err)
	}
	ac.device = device

	fmt.Printf("Audio Device Initialized. Rate: %d Hz\n", device.SampleRate())

	return ac, nil
}

// Start 启动音频捕获
func (ac *AudioCapture) Start() error {
	if ac.device == nil {
		return fmt.Errorf("device not initialized")
	}
	return ac.device.Start()
}

// Stop 停止音频捕获并释放资源
func (ac *AudioCapture) Stop() {
	if ac.device != nil {
		ac.device.Uninit()
		ac.device = nil
	}
	if ac.ctx != nil {
		_ = ac.ctx.Uninit()
		ac.ctx.Free()
		ac.ctx = nil
	}
}

// AudioPlayer 把合成好的符号波形送到扬声器 (实时发送输出)
type AudioPlayer struct {
	ctx        *malgo.AllocatedContext
	SampleRate int
	DeviceName string
}

// NewAudioPlayer 创建播放器
func NewAudioPlayer(sampleRate int, targetDeviceName string) (*AudioPlayer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %v", err)
	}
	return &AudioPlayer{
		ctx:        ctx,
		SampleRate: sampleRate,
		DeviceName: targetDeviceName,
	}, nil
}

// Play 播放一段采样，阻塞到播完为止
func (ap *AudioPlayer) Play(samples []float64) error {
	if ap.ctx == nil {
		return fmt.Errorf("player not initialized")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(ap.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if ap.DeviceName != "" {
		infos, err := ap.ctx.Devices(malgo.Playback)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(ap.DeviceName)) {
					deviceConfig.Playback.DeviceID = info.ID.Pointer()
					break
				}
			}
		}
	}

	pos := 0
	done := make(chan struct{})
	var once sync.Once

	onSendFrames := func(pOutputSamples, pInputSamples []byte, framecount uint32) {
		if len(pOutputSamples) == 0 {
			return
		}
		out := unsafe.Slice((*float32)(unsafe.Pointer(&pOutputSamples[0])), int(framecount))
		for i := range out {
			if pos < len(samples) {
				out[i] = float32(samples[pos])
				pos++
			} else {
				// 播完补静音，等 Play 收尾
				out[i] = 0
			}
		}
		if pos >= len(samples) {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(ap.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("failed to init playback device: %v", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback: %v", err)
	}
	<-done
	return nil
}

// Close 释放播放器资源
func (ap *AudioPlayer) Close() {
	if ap.ctx != nil {
		_ = ap.ctx.Uninit()
		ap.ctx.Free()
		ap.ctx = nil
	}
}
