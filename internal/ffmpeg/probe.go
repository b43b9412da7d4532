package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var ErrProbe = errors.New("probe failed")

// Attributes ffprobe 读取到的输入视频属性
type Attributes struct {
	DurationSeconds float64
	FPS             float64
	Width           int
	Height          int
}

// IsLandscape 宽大于高
func (a Attributes) IsLandscape() bool {
	return a.Width > a.Height
}

// MaxDimension 返回较长边
func (a Attributes) MaxDimension() int {
	return max(a.Width, a.Height)
}

// Prober 调用 ffprobe
type Prober struct {
	Binary string
	Log    zerolog.Logger
}

func NewProber(log zerolog.Logger) *Prober {
	return &Prober{Binary: "ffprobe", Log: log}
}

// ProbeArgs 构建 ffprobe 参数
func ProbeArgs(inputFile string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration:stream=r_frame_rate,width,height",
		"-of", "default=noprint_wrappers=1",
		inputFile,
	}
}

// Probe 获取时长、帧率和分辨率
func (p *Prober) Probe(ctx context.Context, inputFile string) (Attributes, error) {
	cmd := exec.CommandContext(ctx, p.Binary, ProbeArgs(inputFile)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Attributes{}, ctx.Err()
		}
		return Attributes{}, fmt.Errorf("%w: %s: %v: %s", ErrProbe, inputFile, err, strings.TrimSpace(stderr.String()))
	}

	attrs, err := ParseProbeOutput(out)
	if err != nil {
		return Attributes{}, fmt.Errorf("%s: %w", inputFile, err)
	}
	p.Log.Debug().
		Float64("duration", attrs.DurationSeconds).
		Float64("fps", attrs.FPS).
		Int("width", attrs.Width).
		Int("height", attrs.Height).
		Msg("probe")
	return attrs, nil
}

// ParseProbeOutput 解析 key=value 形式的 ffprobe 输出
func ParseProbeOutput(out []byte) (Attributes, error) {
	entries := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		// 同名字段只取第一个
		if _, seen := entries[key]; !seen {
			entries[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	field := func(key string) (string, error) {
		v, ok := entries[key]
		if !ok || v == "" || v == "N/A" {
			return "", fmt.Errorf("%w: missing %s", ErrProbe, key)
		}
		return v, nil
	}

	var attrs Attributes

	raw, err := field("duration")
	if err != nil {
		return Attributes{}, err
	}
	if attrs.DurationSeconds, err = strconv.ParseFloat(raw, 64); err != nil {
		return Attributes{}, fmt.Errorf("%w: duration %q: %v", ErrProbe, raw, err)
	}

	if raw, err = field("r_frame_rate"); err != nil {
		return Attributes{}, err
	}
	if attrs.FPS, err = ParseFrameRate(raw); err != nil {
		return Attributes{}, err
	}

	if raw, err = field("width"); err != nil {
		return Attributes{}, err
	}
	if attrs.Width, err = strconv.Atoi(raw); err != nil {
		return Attributes{}, fmt.Errorf("%w: width %q: %v", ErrProbe, raw, err)
	}

	if raw, err = field("height"); err != nil {
		return Attributes{}, err
	}
	if attrs.Height, err = strconv.Atoi(raw); err != nil {
		return Attributes{}, fmt.Errorf("%w: height %q: %v", ErrProbe, raw, err)
	}

	return attrs, nil
}

// ParseFrameRate 解析 "30000/1001" 或 "25" 形式的帧率
func ParseFrameRate(s string) (float64, error) {
	num, den, hasDen := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frame rate %q: %v", ErrProbe, s, err)
	}
	if !hasDen {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frame rate %q: %v", ErrProbe, s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: frame rate %q has zero denominator", ErrProbe, s)
	}
	return n / d, nil
}
