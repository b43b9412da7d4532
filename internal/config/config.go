package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 内置默认值
const (
	DefaultTargetSizeMB = 8.0 // Discord 免费用户上限
	DefaultOutputName   = "output"
	MaxTargetSizeMB     = 1000 * 1000 // 1 TB
)

var (
	ErrUnknownResolution = errors.New("unknown max resolution")
	ErrInvalidConfig     = errors.New("invalid config")
)

// Resolution 宽 x 高
type Resolution struct {
	Width  int
	Height int
}

// MaxDimension 返回较长边
func (r Resolution) MaxDimension() int {
	return max(r.Width, r.Height)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var (
	Resolution4K  = Resolution{Width: 3040, Height: 2160}
	Resolution2K  = Resolution{Width: 2560, Height: 1440}
	ResolutionHD  = Resolution{Width: 1920, Height: 1080}
	Resolution720 = Resolution{Width: 1280, Height: 720}
	Resolution480 = Resolution{Width: 854, Height: 480}
	Resolution360 = Resolution{Width: 640, Height: 360}
	Resolution240 = Resolution{Width: 426, Height: 240}
)

// Presets 分辨率预设表，多个别名可指向同一预设。只读。
var Presets = map[string]Resolution{
	"4K":    Resolution4K,
	"UHD":   Resolution4K,
	"2160p": Resolution4K,

	"2K":    Resolution2K,
	"1440":  Resolution2K,
	"1440p": Resolution2K,

	"HD":    ResolutionHD,
	"1080":  ResolutionHD,
	"1080p": ResolutionHD,

	"720":  Resolution720,
	"720p": Resolution720,

	"480":  Resolution480,
	"480p": Resolution480,

	"360":  Resolution360,
	"360p": Resolution360,

	"240":  Resolution240,
	"240p": Resolution240,
}

// PresetNames 返回排序后的预设名
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupResolution 按名称查找预设，名称区分大小写
func LookupResolution(name string) (Resolution, error) {
	res, ok := Presets[name]
	if !ok {
		return Resolution{}, fmt.Errorf("%w %q: must be one of %s",
			ErrUnknownResolution, name, strings.Join(PresetNames(), ", "))
	}
	return res, nil
}

// Options 单次运行的压缩参数，构建后不再修改
type Options struct {
	OutputName    string
	TargetSizeMB  float64
	MaxFPS        int         // 0 表示不限制
	MaxResolution *Resolution // nil 表示不限制
}

// Request 解析后的完整请求
type Request struct {
	InputPath string
	Options   Options
}
