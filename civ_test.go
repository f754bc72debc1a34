package tonemodem

import (
	"bytes"
	"testing"
)

// MockSerialPort 模拟串口
type MockSerialPort struct {
	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer
	Closed      bool
}

func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{
		ReadBuffer:  new(bytes.Buffer),
		WriteBuffer: new(bytes.Buffer),
	}
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	return m.ReadBuffer.Read(p)
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	return m.WriteBuffer.Write(p)
}

func (m *MockSerialPort) Close() error {
	m.Closed = true
	return nil
}

// 辅助函数：生成 CI-V 响应帧
func makeResponseFrame(cmd byte, data []byte) []byte {
	// FE FE E0 94 Cmd [Data...] FD
	frame := []byte{CIV_PREAMBLE, CIV_PREAMBLE, CIV_ADDR_PC, CIV_ADDR_7300, cmd}
	if len(data) > 0 {
		frame = append(frame, data...)
	}
	frame = append(frame, CIV_END)
	return frame
}

func TestSendCommand(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	// 测试发送指令 0x03 (读取频率)
	err := client.SendCommand(0x03, nil)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	expected := []byte{0xFE, 0xFE, 0x94, 0xE0, 0x03, 0xFD}
	if !bytes.Equal(mockPort.WriteBuffer.Bytes(), expected) {
		t.Errorf("Expected command frame %X, got %X", expected, mockPort.WriteBuffer.Bytes())
	}
}

func TestSetPTT(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	if err := client.SetPTT(true); err != nil {
		t.Fatalf("SetPTT(true) failed: %v", err)
	}
	expectedOn := []byte{0xFE, 0xFE, 0x94, 0xE0, 0x1C, 0x00, 0x01, 0xFD}
	if !bytes.Equal(mockPort.WriteBuffer.Bytes(), expectedOn) {
		t.Errorf("Expected PTT on frame %X, got %X", expectedOn, mockPort.WriteBuffer.Bytes())
	}

	mockPort.WriteBuffer.Reset()
	if err := client.SetPTT(false); err != nil {
		t.Fatalf("SetPTT(false) failed: %v", err)
	}
	expectedOff := []byte{0xFE, 0xFE, 0x94, 0xE0, 0x1C, 0x00, 0x00, 0xFD}
	if !bytes.Equal(mockPort.WriteBuffer.Bytes(), expectedOff) {
		t.Errorf("Expected PTT off frame %X, got %X", expectedOff, mockPort.WriteBuffer.Bytes())
	}
}

func TestReadFrequency(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	// 模拟电台响应: 7.050.00 MHz -> 00 00 05 07 00
	// (BCD, 低位在前, 每字节两位十进制: 0x05 是 5, 权重 10^4)
	freqData := []byte{0x00, 0x00, 0x05, 0x07, 0x00}
	mockPort.ReadBuffer.Write(makeResponseFrame(0x03, freqData))

	freq, err := client.ReadFrequency()
	if err != nil {
		t.Fatalf("ReadFrequency failed: %v", err)
	}

	expectedFreq := 7050000
	if freq != expectedFreq {
		t.Errorf("Expected frequency %d, got %d", expectedFreq, freq)
	}
}

func TestReadFrequency_TwoDigitBytes(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	// 14.250.00 MHz: 每个 BCD 字节带两位十进制 (0x25 -> 25, 0x14 -> 14)
	freqData := []byte{0x00, 0x00, 0x25, 0x14, 0x00}
	mockPort.ReadBuffer.Write(makeResponseFrame(0x03, freqData))

	freq, err := client.ReadFrequency()
	if err != nil {
		t.Fatalf("ReadFrequency failed: %v", err)
	}

	expectedFreq := 14250000
	if freq != expectedFreq {
		t.Errorf("Expected frequency %d, got %d", expectedFreq, freq)
	}
}

func TestReadFrequency_WithEcho(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	// 串口回显了我们发出去的指令，响应帧跟在后面，需要被正确过滤
	echo := []byte{CIV_PREAMBLE, CIV_PREAMBLE, CIV_ADDR_7300, CIV_ADDR_PC, 0x03, CIV_END}
	mockPort.ReadBuffer.Write(echo)
	freqData := []byte{0x00, 0x00, 0x05, 0x07, 0x00}
	mockPort.ReadBuffer.Write(makeResponseFrame(0x03, freqData))

	freq, err := client.ReadFrequency()
	if err != nil {
		t.Fatalf("ReadFrequency with echo failed: %v", err)
	}

	expectedFreq := 7050000
	if freq != expectedFreq {
		t.Errorf("Expected frequency %d, got %d", expectedFreq, freq)
	}
}

func TestClose(t *testing.T) {
	mockPort := NewMockSerialPort()
	client := &CIVClient{conn: mockPort}

	err := client.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !mockPort.Closed {
		t.Error("Expected port to be closed")
	}
}
