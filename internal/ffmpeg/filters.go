package ffmpeg

import (
	"fmt"
	"strings"

	"squeeze/internal/config"
)

// autoDimension 让 ffmpeg 按比例计算另一边，-2 保证结果为偶数（libx264 要求）
const autoDimension = -2

// FPSFilter 输入帧率严格大于上限时返回降帧滤镜
func FPSFilter(attrs Attributes, opts config.Options) (string, bool) {
	if opts.MaxFPS <= 0 || attrs.FPS <= float64(opts.MaxFPS) {
		return "", false
	}
	return fmt.Sprintf("fps=fps=%d", opts.MaxFPS), true
}

// ScaleFilter 输入较长边严格大于预设较长边时返回缩放滤镜。
// 横屏固定宽度，竖屏或方形固定高度，另一边按比例缩放。
func ScaleFilter(attrs Attributes, opts config.Options) (string, bool) {
	if opts.MaxResolution == nil {
		return "", false
	}
	limit := opts.MaxResolution.MaxDimension()
	if limit >= attrs.MaxDimension() {
		return "", false
	}
	if attrs.IsLandscape() {
		return fmt.Sprintf("scale=%d:%d", limit, autoDimension), true
	}
	return fmt.Sprintf("scale=%d:%d", autoDimension, limit), true
}

// FilterChain 返回需要应用的滤镜，顺序为 fps -> scale
func FilterChain(attrs Attributes, opts config.Options) []string {
	var filters []string
	if f, ok := FPSFilter(attrs, opts); ok {
		filters = append(filters, f)
	}
	if f, ok := ScaleFilter(attrs, opts); ok {
		filters = append(filters, f)
	}
	return filters
}

// JoinFilters 合并为单个滤镜图参数
func JoinFilters(filters []string) string {
	return strings.Join(filters, ",")
}
