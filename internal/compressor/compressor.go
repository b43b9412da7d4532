package compressor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"squeeze/internal/config"
	"squeeze/internal/ffmpeg"
	"squeeze/internal/utils"
)

// Prober 读取输入视频属性
type Prober interface {
	Probe(ctx context.Context, inputFile string) (ffmpeg.Attributes, error)
}

// Encoder 在 workDir 中执行一轮编码
type Encoder interface {
	RunPass(ctx context.Context, workDir string, pass int, args []string, durationSec float64) error
}

// Reporter 发布结果并等待用户确认
type Reporter interface {
	Publish(res Result) error
	AwaitAck(ctx context.Context) error
}

// Result 单次压缩的结果
type Result struct {
	InputFile        string
	OutputFile       string
	Attributes       ffmpeg.Attributes
	TargetSizeMB     float64
	VideoBitrateKbps int
	Filters          []string
	Commands         [][]string
	OutputSize       int64
	// Temporary 为 true 时输出位于临时目录，确认后会被删除
	Temporary bool
}

// Command 返回第 pass 轮命令的可读形式
func (r Result) Command(pass int) string {
	if pass < 1 || pass > len(r.Commands) {
		return ""
	}
	return "ffmpeg " + strings.Join(r.Commands[pass-1], " ")
}

// Compressor 串联探测、码率规划、两轮编码和结果报告
type Compressor struct {
	Prober   Prober
	Encoder  Encoder
	Reporter Reporter

	// OutputDir 非空时输出写到该目录，不再等待确认
	OutputDir string
	// TempRoot 临时目录的父目录，空为系统默认
	TempRoot string
	DryRun   bool

	Log zerolog.Logger
}

// Compress 执行一次完整的压缩。临时目录在所有返回路径上都会被删除，
// 输出位于临时目录时删除发生在 Reporter 确认之后。
func (c *Compressor) Compress(ctx context.Context, req config.Request) (Result, error) {
	res := Result{
		InputFile:    req.InputPath,
		TargetSizeMB: req.Options.TargetSizeMB,
	}

	if _, err := os.Stat(req.InputPath); err != nil {
		return res, fmt.Errorf("stat input failed: %w", err)
	}

	workDir, err := os.MkdirTemp(c.TempRoot, "squeeze-")
	if err != nil {
		return res, fmt.Errorf("create work dir failed: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			c.Log.Warn().Err(err).Str("dir", workDir).Msg("清理临时目录失败")
		}
	}()

	attrs, err := c.Prober.Probe(ctx, req.InputPath)
	if err != nil {
		return res, fmt.Errorf("probe %s: %w", filepath.Base(req.InputPath), err)
	}
	res.Attributes = attrs

	bitrate, err := PlanBitrate(req.Options.TargetSizeMB, attrs.DurationSeconds, AudioBitrateKbps, Margin)
	if err != nil {
		return res, err
	}
	res.VideoBitrateKbps = bitrate
	res.Filters = ffmpeg.FilterChain(attrs, req.Options)

	outDir := workDir
	res.Temporary = true
	if c.OutputDir != "" {
		outDir, err = filepath.Abs(c.OutputDir)
		if err != nil {
			return res, fmt.Errorf("resolve output dir failed: %w", err)
		}
		if err := utils.EnsureDir(outDir); err != nil {
			return res, fmt.Errorf("create output dir failed: %w", err)
		}
		res.Temporary = false
	}
	res.OutputFile = config.OutputPath(outDir, req.Options.OutputName)

	job := ffmpeg.EncodeJob{
		InputFile:        req.InputPath,
		OutputFile:       res.OutputFile,
		VideoBitrateKbps: bitrate,
		AudioBitrateKbps: AudioBitrateKbps,
		Filters:          res.Filters,
	}
	res.Commands = [][]string{ffmpeg.BuildPassArgs(job, 1), ffmpeg.BuildPassArgs(job, 2)}

	c.Log.Info().
		Float64("duration", attrs.DurationSeconds).
		Float64("fps", attrs.FPS).
		Str("resolution", fmt.Sprintf("%dx%d", attrs.Width, attrs.Height)).
		Int("video_kbps", bitrate).
		Strs("filters", res.Filters).
		Msg("编码计划")

	if c.DryRun {
		for pass := 1; pass <= 2; pass++ {
			c.Log.Info().Int("pass", pass).Msg(res.Command(pass))
		}
		return res, nil
	}

	for pass := 1; pass <= 2; pass++ {
		if err := c.Encoder.RunPass(ctx, workDir, pass, res.Commands[pass-1], attrs.DurationSeconds); err != nil {
			return res, err
		}
	}
	res.OutputSize = utils.FileSize(res.OutputFile)

	if c.Reporter == nil {
		return res, nil
	}
	if err := c.Reporter.Publish(res); err != nil {
		c.Log.Warn().Err(err).Msg("发布输出路径失败")
	}
	if res.Temporary {
		if err := c.Reporter.AwaitAck(ctx); err != nil {
			return res, fmt.Errorf("await acknowledgement: %w", err)
		}
	}
	return res, nil
}
