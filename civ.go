package tonemodem

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	CIV_PREAMBLE  = 0xFE
	CIV_END       = 0xFD
	CIV_ADDR_7300 = 0x94 // ICOM 7300 默认地址
	CIV_ADDR_PC   = 0xE0 // 控制器(PC) 默认地址
)

// SerialPort 定义串口操作接口，方便测试 Mock
type SerialPort interface {
	io.ReadWriteCloser
}

// CIVClient 处理与 ICOM 电台的通信
// 发送音频帧时用它按下/松开 PTT，状态行里显示当前频率
type CIVClient struct {
	Port     string
	BaudRate int
	conn     SerialPort
}

// NewCIVClient 创建新的 CI-V 客户端
func NewCIVClient(port string, baudRate int) *CIVClient {
	return &CIVClient{
		Port:     port,
		BaudRate: baudRate,
	}
}

// Open 打开串口连接
func (c *CIVClient) Open() error {
	config := &serial.Config{
		Name:        c.Port,
		Baud:        c.BaudRate,
		ReadTimeout: time.Millisecond * 500,
	}
	s, err := serial.OpenPort(config)
	if err != nil {
		return err
	}
	c.conn = s
	return nil
}

// Close 关闭串口连接
func (c *CIVClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand 发送 CI-V 命令
// 帧格式: FE FE [To] [From] [Cmd] [SubCmd...] FD
func (c *CIVClient) SendCommand(cmd byte, subCmd []byte) error {
	if c.conn == nil {
		return fmt.Errorf("connection not open")
	}
	frame := []byte{CIV_PREAMBLE, CIV_PREAMBLE, CIV_ADDR_7300, CIV_ADDR_PC, cmd}
	if len(subCmd) > 0 {
		frame = append(frame, subCmd...)
	}
	frame = append(frame, CIV_END)

	_, err := c.conn.Write(frame)
	return err
}

// SetPTT 按下或松开 PTT (Cmd 0x1C Sub 0x00)
// 发送音频帧前按下，播完后必须松开，不然电台会一直处于发射状态
func (c *CIVClient) SetPTT(on bool) error {
	state := byte(0x00)
	if on {
		state = 0x01
	}
	return c.SendCommand(0x1C, []byte{0x00, state})
}

// ReadFrequency 读取当前频率 (Hz)
func (c *CIVClient) ReadFrequency() (int, error) {
	// Cmd 0x03: Read operating frequency
	if err := c.SendCommand(0x03, nil); err != nil {
		return 0, err
	}

	resp, err := c.readResponse(0x03)
	if err != nil {
		return 0, err
	}

	// 解析 BCD 编码的频率数据
	// 响应格式: FE FE E0 94 03 [d1 d2 d3 d4 d5] FD
	// 数据部分是 5 字节 BCD，低位在前，每字节两位十进制
	// 例如 7.050.00 MHz -> 00 00 05 07 00
	if len(resp) < 5 {
		return 0, fmt.Errorf("invalid frequency data length")
	}

	freq := 0
	multiplier := 1
	for i := 0; i < 5 && i < len(resp); i++ {
		val := bcdToDecimal(resp[i])
		freq += val * multiplier
		multiplier *= 100
	}

	return freq, nil
}

// readResponse 读取并解析响应
func (c *CIVClient) readResponse(expectedCmd byte) ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection not open")
	}
	buf := make([]byte, 1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("connection closed")
		}
		// 串口读取超时也可能返回 err，视库实现而定
	}
	if n == 0 {
		return nil, fmt.Errorf("timeout or no data")
	}

	data := buf[:n]
	// 查找目标帧头: FE FE [To=PC] [From=7300] [Cmd]
	// 串口可能会回显我们发送的指令，需要过滤
	header := []byte{CIV_PREAMBLE, CIV_PREAMBLE, CIV_ADDR_PC, CIV_ADDR_7300, expectedCmd}
	idx := bytes.Index(data, header)
	if idx == -1 {
		return nil, fmt.Errorf("response header not found in: %s", hex.EncodeToString(data))
	}

	frame := data[idx:]
	endIdx := bytes.IndexByte(frame, CIV_END)
	if endIdx == -1 {
		return nil, fmt.Errorf("frame end not found")
	}

	// Header(5 bytes) ... Data ... End(1 byte)
	if endIdx <= 5 {
		return []byte{}, nil // 无数据
	}

	return frame[5:endIdx], nil
}

func bcdToDecimal(b byte) int {
	return int((b>>4)*10 + (b & 0x0F))
}
