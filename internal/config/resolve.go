package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrMissingInput = errors.New("input path is required")

// Overrides 命令行显式传入的值，nil 表示未指定
type Overrides struct {
	InputPath     *string
	OutputName    *string
	TargetSizeMB  *float64
	MaxFPS        *int
	MaxResolution *string
}

// Resolve 按 内置默认值 < 配置文件 < 命令行 的优先级合并参数。
// 输入路径和输出名缺失时通过 prompter 询问；输出名为空时回退为 "output"。
func Resolve(defaults Defaults, ov Overrides, prompter Prompter) (Request, error) {
	if err := defaults.Validate(); err != nil {
		return Request{}, err
	}

	opts := Options{
		TargetSizeMB: defaults.TargetSize,
		MaxFPS:       defaults.MaxFPS,
	}
	resolutionName := defaults.MaxResolution
	explicitResolution := false

	if ov.TargetSizeMB != nil {
		if err := checkTargetSize(*ov.TargetSizeMB); err != nil {
			return Request{}, err
		}
		opts.TargetSizeMB = *ov.TargetSizeMB
	}
	if ov.MaxFPS != nil {
		if *ov.MaxFPS < 0 {
			return Request{}, fmt.Errorf("%w: max fps must not be negative, got %d", ErrInvalidConfig, *ov.MaxFPS)
		}
		opts.MaxFPS = *ov.MaxFPS
	}
	if ov.MaxResolution != nil {
		resolutionName = *ov.MaxResolution
		explicitResolution = true
	}
	if resolutionName != "" || explicitResolution {
		res, err := LookupResolution(resolutionName)
		if err != nil {
			return Request{}, err
		}
		opts.MaxResolution = &res
	}

	input, err := valueOrPrompt(ov.InputPath, prompter, "请输入视频路径: ")
	if err != nil {
		return Request{}, err
	}
	input = strings.Trim(input, `"`)
	if input == "" {
		return Request{}, ErrMissingInput
	}
	// ffmpeg 在临时目录中运行，必须使用绝对路径
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}

	name, err := valueOrPrompt(ov.OutputName, prompter, "(可选) 请输入输出文件名: ")
	if err != nil {
		return Request{}, err
	}
	if name == "" {
		name = DefaultOutputName
	}
	opts.OutputName = name

	return Request{InputPath: input, Options: opts}, nil
}

func valueOrPrompt(v *string, prompter Prompter, question string) (string, error) {
	if v != nil && *v != "" {
		return *v, nil
	}
	if prompter == nil {
		return "", nil
	}
	answer, err := prompter.Prompt(question)
	if err != nil {
		return "", fmt.Errorf("read prompt answer failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// OutputPath 在 dir 下生成 <name>.mp4，已有扩展名会被替换
func OutputPath(dir, name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = DefaultOutputName
	}
	return filepath.Join(dir, base+".mp4")
}
