package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

const (
	VideoCodec = "libx264"
	AudioCodec = "aac"

	stderrTailBytes = 4096
)

// PassError 某一轮编码以非零状态退出
type PassError struct {
	Pass   int
	Err    error
	Stderr string
}

func (e *PassError) Error() string {
	return fmt.Sprintf("ffmpeg pass %d failed: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// EncodeJob 两轮编码共享的参数
type EncodeJob struct {
	InputFile        string
	OutputFile       string
	VideoBitrateKbps int
	AudioBitrateKbps int
	Filters          []string
}

// BuildPassArgs 构建第 pass 轮的 FFmpeg 参数。
// 第一轮只做分析：不含音频，输出丢弃；第二轮写出最终文件。
func BuildPassArgs(job EncodeJob, pass int) []string {
	args := []string{
		"-y",
		"-i", job.InputFile,
		"-progress", "pipe:1", "-nostats", "-hide_banner",
		"-c:v", VideoCodec,
		"-b:v", fmt.Sprintf("%dk", job.VideoBitrateKbps),
	}

	if len(job.Filters) > 0 {
		args = append(args, "-vf", JoinFilters(job.Filters))
	}

	args = append(args, "-pass", strconv.Itoa(pass))
	if pass == 1 {
		args = append(args, "-an", "-f", "null", os.DevNull)
		return args
	}

	args = append(args,
		"-c:a", AudioCodec,
		"-b:a", fmt.Sprintf("%dk", job.AudioBitrateKbps),
		"-movflags", "+faststart",
		job.OutputFile,
	)
	return args
}

// Runner 执行 FFmpeg 并在 Progress 上绘制进度条
type Runner struct {
	Binary   string
	Progress io.Writer // nil 时不显示进度条
	Log      zerolog.Logger
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{Binary: "ffmpeg", Progress: os.Stderr, Log: log}
}

func (r *Runner) newBar(pass int, durationSec float64) *progressbar.ProgressBar {
	if r.Progress == nil {
		return nil
	}
	return progressbar.NewOptions64(
		int64(durationSec*1000000),
		progressbar.OptionSetDescription(fmt.Sprintf("第 %d/2 轮", pass)),
		progressbar.OptionSetWriter(r.Progress),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(r.Progress, "\n") }),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// RunPass 在 workDir 中执行一轮编码，durationSec 用于计算进度
func (r *Runner) RunPass(ctx context.Context, workDir string, pass int, args []string, durationSec float64) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = workDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return &PassError{Pass: pass, Err: err}
	}

	r.Log.Debug().Int("pass", pass).Str("dir", workDir).Msgf("%s %s", r.Binary, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return &PassError{Pass: pass, Err: err}
	}

	bar := r.newBar(pass, durationSec)
	if bar != nil {
		_ = bar.RenderBlank()
	}
	trackProgress(stdoutPipe, bar)

	if err := cmd.Wait(); err != nil {
		if bar != nil {
			_ = bar.Clear()
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		tail := tailString(stderr.String(), stderrTailBytes)
		r.Log.Error().Int("pass", pass).Str("stderr", tail).Msg("FFmpeg 运行错误")
		return &PassError{Pass: pass, Err: err, Stderr: tail}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// trackProgress 读取 -progress 输出中的 out_time_us 并增量更新进度条
func trackProgress(r io.Reader, bar *progressbar.ProgressBar) int64 {
	scanner := bufio.NewScanner(r)
	var lastTimeUs int64 = 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "out_time_us=") {
			continue
		}
		currentUs, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64)
		if err != nil {
			continue
		}
		if currentUs > lastTimeUs {
			if bar != nil {
				_ = bar.Add64(currentUs - lastTimeUs)
			}
			lastTimeUs = currentUs
		}
	}
	return lastTimeUs
}

func tailString(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
