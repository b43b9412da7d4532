package compressor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"

	"squeeze/internal/utils"
)

var ErrClipboardUnsupported = errors.New("clipboard is not supported on this system")

// ConsoleReporter 打印结果、复制路径到剪贴板，并等待回车确认
type ConsoleReporter struct {
	Out       io.Writer
	In        io.Reader
	Clipboard bool

	copy func(text string) error
}

func NewConsoleReporter(in io.Reader, out io.Writer, useClipboard bool) *ConsoleReporter {
	return &ConsoleReporter{Out: out, In: in, Clipboard: useClipboard, copy: writeClipboard}
}

func writeClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// Publish 打印摘要，并在启用时把输出路径写入剪贴板
func (r *ConsoleReporter) Publish(res Result) error {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(r.Out, "------------------------------------------------")
	green.Fprintf(r.Out, "✅ 压缩完成: %s\n", res.OutputFile)

	target := int64(res.TargetSizeMB * 1000 * 1000)
	fmt.Fprintf(r.Out, "输出大小: %s (目标 %s, 视频码率 %dk)\n",
		utils.FormatSize(res.OutputSize), utils.FormatSize(target), res.VideoBitrateKbps)
	if target > 0 && res.OutputSize > target {
		yellow.Fprintln(r.Out, "⚠️ 输出超过目标大小")
	}

	var err error
	if r.Clipboard {
		copyFn := r.copy
		if copyFn == nil {
			copyFn = writeClipboard
		}
		if err = copyFn(res.OutputFile); err == nil {
			fmt.Fprintln(r.Out, "输出路径已复制到剪贴板")
		}
	}
	fmt.Fprintln(r.Out, "------------------------------------------------")
	return err
}

// AwaitAck 阻塞直到用户按下回车或 ctx 取消
func (r *ConsoleReporter) AwaitAck(ctx context.Context) error {
	fmt.Fprint(r.Out, "按回车键结束，临时目录中的压缩文件将被删除...")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(r.In).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Fprintln(r.Out)
		return ctx.Err()
	}
}
