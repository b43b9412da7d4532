package compressor

import (
	"errors"
	"fmt"
	"math"
)

const (
	// AudioBitrateKbps 音频固定码率，不计入视频预算
	AudioBitrateKbps = 128
	// Margin 预留封装开销，保证输出不超过目标大小
	Margin = 0.98

	megabytesToKilobits = 8 * 1000 // 8 bit/B * 1000 kb/Mb

	// maxTotalKbps 超过该值的码率没有意义，也会在转换为 int 时溢出
	maxTotalKbps = math.MaxInt32
)

var (
	ErrBitrateTooLow   = errors.New("computed video bitrate is not positive")
	ErrBitrateTooHigh  = errors.New("computed video bitrate is out of range")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidTarget   = errors.New("target size must be positive")
)

// PlanBitrate 根据目标大小和时长计算视频码率 (kbps)：
// floor(targetMB * 8000 / durationSec * margin) - audioKbps
func PlanBitrate(targetMB, durationSec float64, audioKbps int, margin float64) (int, error) {
	if !(targetMB > 0) || math.IsInf(targetMB, 0) {
		return 0, fmt.Errorf("%w: %g MB", ErrInvalidTarget, targetMB)
	}
	if durationSec <= 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		return 0, fmt.Errorf("%w: %g s", ErrInvalidDuration, durationSec)
	}

	raw := math.Floor(targetMB * megabytesToKilobits / durationSec * margin)
	if math.IsNaN(raw) || raw > maxTotalKbps {
		return 0, fmt.Errorf("%w: %g kbps for %g MB over %.1f s", ErrBitrateTooHigh, raw, targetMB, durationSec)
	}
	video := int(raw) - audioKbps
	if video <= 0 {
		return 0, fmt.Errorf("%w: %d kbps for %g MB over %.1f s (audio alone needs %d kbps)",
			ErrBitrateTooLow, video, targetMB, durationSec, audioKbps)
	}
	return video, nil
}
