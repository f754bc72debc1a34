package tonemodem

import (
	"bufio"
	"fmt"
	"os"
)

// SignalDebugger 定义调试器接口
// 解码器只依赖这个接口，不依赖具体的文件操作
type SignalDebugger interface {
	Record(raw, normalized float64, state DecoderState, windowLen, phase int)
	Close()
}

// CsvFileDebugger 是 SignalDebugger 的具体实现
// 逐采样记录解码器内部状态，方便离线画图分析捕获和漂移过程
type CsvFileDebugger struct {
	file   *os.File
	writer *bufio.Writer
}

// NewCsvFileDebugger 创建一个新的 CSV 调试器
func NewCsvFileDebugger(filename string) (*CsvFileDebugger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriter(f)
	// 写入表头
	if _, err := w.WriteString("Raw,Normalized,State,WindowLen,Phase\n"); err != nil {
		f.Close()
		return nil, err
	}

	return &CsvFileDebugger{
		file:   f,
		writer: w,
	}, nil
}

// Record 记录单个采样的解码器状态
func (d *CsvFileDebugger) Record(raw, normalized float64, state DecoderState, windowLen, phase int) {
	fmt.Fprintf(d.writer, "%f,%f,%s,%d,%d\n", raw, normalized, state, windowLen, phase)
}

// Close 关闭文件并刷新缓冲区
func (d *CsvFileDebugger) Close() {
	if d.writer != nil {
		d.writer.Flush()
	}
	if d.file != nil {
		d.file.Close()
	}
}

// NoOpDebugger 是一个空实现，生产路径默认使用它，
// 避免核心代码里到处判空
type NoOpDebugger struct{}

func (d *NoOpDebugger) Record(raw, normalized float64, state DecoderState, windowLen, phase int) {
}
func (d *NoOpDebugger) Close() {}
