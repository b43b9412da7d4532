package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	sectionDefaults = "defaults"

	keyTargetSize    = sectionDefaults + ".targetSize"
	keyMaxFPS        = sectionDefaults + ".maxFPS"
	keyMaxResolution = sectionDefaults + ".maxResolution"

	configFileName = ".squeeze.ini"
)

// Defaults 用户配置文件中的默认值
type Defaults struct {
	TargetSize    float64
	MaxFPS        int
	MaxResolution string
}

// BuiltinDefaults 配置文件缺失时使用
func BuiltinDefaults() Defaults {
	return Defaults{TargetSize: DefaultTargetSizeMB}
}

// DefaultPath 返回 ~/.squeeze.ini
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir failed: %w", err)
	}
	return filepath.Join(home, configFileName), nil
}

// LoadDefaults 读取 INI 配置文件的 [defaults] 段。
// 文件不存在时返回内置默认值；存在但数值无法解析时返回 ErrInvalidConfig。
// 返回值已通过 Validate 校验。
func LoadDefaults(path string) (Defaults, error) {
	d := BuiltinDefaults()
	if path == "" {
		return d, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("stat config %s failed: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return d, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}

	if v.IsSet(keyTargetSize) {
		size, err := cast.ToFloat64E(v.Get(keyTargetSize))
		if err != nil {
			return d, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keyTargetSize, err)
		}
		d.TargetSize = size
	}
	if v.IsSet(keyMaxFPS) {
		// strconv 按十进制解析，"030" 为 30
		fps, err := strconv.Atoi(strings.TrimSpace(v.GetString(keyMaxFPS)))
		if err != nil {
			return d, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keyMaxFPS, err)
		}
		d.MaxFPS = fps
	}
	if v.IsSet(keyMaxResolution) {
		name := strings.TrimSpace(v.GetString(keyMaxResolution))
		// 显式写出的空值不是合法预设
		if _, err := LookupResolution(name); err != nil {
			return d, fmt.Errorf("default max resolution: %w", err)
		}
		d.MaxResolution = name
	}

	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

// Validate 检查默认值是否合法
func (d Defaults) Validate() error {
	if err := checkTargetSize(d.TargetSize); err != nil {
		return err
	}
	if d.MaxFPS < 0 {
		return fmt.Errorf("%w: max fps must not be negative, got %d", ErrInvalidConfig, d.MaxFPS)
	}
	if d.MaxResolution != "" {
		if _, err := LookupResolution(d.MaxResolution); err != nil {
			return fmt.Errorf("default max resolution: %w", err)
		}
	}
	return nil
}

// checkTargetSize 目标大小必须在 (0, MaxTargetSizeMB] 内，NaN 和 Inf 均不合法
func checkTargetSize(size float64) error {
	if !(size > 0) || math.IsInf(size, 0) {
		return fmt.Errorf("%w: target size must be a finite number greater than 0, got %g", ErrInvalidConfig, size)
	}
	if size > MaxTargetSizeMB {
		return fmt.Errorf("%w: target size must not exceed %g MB, got %g", ErrInvalidConfig, float64(MaxTargetSizeMB), size)
	}
	return nil
}
