package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"tonemodem"
)

func main() {
	// 1. 解析命令行参数
	decodeMode := flag.Bool("d", false, "Decode raw 32-bit PCM from stdin to bytes on stdout")
	inputFile := flag.String("file", "", "Input wav file for replay decoding")
	liveMode := flag.Bool("live", false, "Decode live audio from the microphone")
	recordAudio := flag.String("record", "", "Record incoming audio to the given wav file")
	debugTrace := flag.String("debug", "", "Write per-sample decoder trace to the given csv file")
	deviceName := flag.String("device", "", "Audio device name substring")
	serialPort := flag.String("port", "", "Serial port for CI-V radio control")
	baudRate := flag.Int("baud", 115200, "Serial baud rate")
	flag.Parse()

	// 管道模式：纯 stdin/stdout，不碰音频设备
	if *decodeMode {
		runDecodePipe()
		return
	}
	if *inputFile == "" && !*liveMode {
		runEncodePipe()
		return
	}

	// 2. 初始化系统
	cfg := tonemodem.DefaultConfig()
	cfg.Audio.DeviceName = *deviceName
	cfg.Radio.Port = *serialPort
	cfg.Radio.BaudRate = *baudRate

	system := tonemodem.NewModemSystem(cfg)
	if *inputFile != "" {
		system.SetReplayFile(*inputFile)
	}
	if *recordAudio != "" {
		system.EnableRecording(*recordAudio)
	}
	if *debugTrace != "" {
		system.EnableDebugTrace(*debugTrace)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	system.OnDataDecoded = func(b byte) {
		out.WriteByte(b)
		out.Flush()
	}
	system.OnStreamEnd = func() {
		sigChan <- os.Interrupt
	}

	// 3. 启动系统
	if err := system.Start(); err != nil {
		log.Fatalf("System start failed: %v", err)
	}
	defer system.Stop()

	// 4. 实时模式下，控制台输入的行会被编码发送
	if *liveMode {
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprintln(os.Stderr, "System Ready. (Type a line to transmit, Ctrl-C to quit)")
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				if err := system.Transmit([]byte(line)); err != nil {
					log.Printf("Transmit failed: %v", err)
				}
			}
		}()
	}

	// 阻塞等待退出信号
	<-sigChan
	fmt.Fprintln(os.Stderr, "\nShutting down...")
}

// runEncodePipe 编码模式：stdin 的字节流 -> stdout 的 WAV 音频
func runEncodePipe() {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	ww, err := tonemodem.NewWavWriter(out, 44100)
	if err != nil {
		log.Fatalf("Failed to write wav header: %v", err)
	}
	enc := tonemodem.NewEncoder(ww)
	if err := enc.EncodeStream(os.Stdin); err != nil {
		log.Fatalf("Encode failed: %v", err)
	}
}

// runDecodePipe 解码模式：stdin 的裸 32-bit PCM -> stdout 的字节流
// 头部剥离是外部的事，这里只吃采样
func runDecodePipe() {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	reader := tonemodem.NewRawSampleReader(os.Stdin)
	decoder := tonemodem.NewDecoder()

	for {
		samples, err := reader.ReadSamples(1024)
		for _, v := range samples {
			b := decoder.Decode(v)
			if b >= 0 {
				out.WriteByte(byte(b))
				continue
			}
			if b == tonemodem.ResultEOF && decoder.State() == tonemodem.StateEOF {
				return
			}
			if b == tonemodem.ResultError {
				log.Fatalf("Decoder invariant violated (degenerate amplitude range)")
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
	}
}
