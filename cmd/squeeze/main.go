package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"squeeze/internal/compressor"
	"squeeze/internal/config"
	"squeeze/internal/ffmpeg"
	"squeeze/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. 参数解析
	var (
		inputPath, outputName, maxResolution string
		outputDir, configPath                string
		targetSize                           float64
		maxFPS                               int
		noClipboard, dryRun, verbose         bool
		listResolutions                      bool
	)

	flags := pflag.NewFlagSet("squeeze", pflag.ContinueOnError)
	flags.StringVarP(&inputPath, "input", "i", "", "输入视频路径")
	flags.StringVarP(&outputName, "name", "n", "", "输出 mp4 文件名")
	flags.Float64VarP(&targetSize, "target-size", "s", config.DefaultTargetSizeMB, "目标文件大小 (MB)，例如 8, 50, 500")
	flags.IntVarP(&maxFPS, "max-fps", "f", 0, "帧率超过该值时降帧 (0 表示不限制)")
	flags.StringVarP(&maxResolution, "max-resolution", "r", "", "分辨率超过该预设时缩小: "+strings.Join(config.PresetNames(), ", "))
	flags.StringVarP(&outputDir, "output-dir", "o", "", "输出目录 (默认写入临时目录，确认后删除)")
	flags.StringVar(&configPath, "config", "", "配置文件路径 (默认 ~/.squeeze.ini)")
	flags.BoolVar(&noClipboard, "no-clipboard", false, "不复制输出路径到剪贴板")
	flags.BoolVar(&dryRun, "dry-run", false, "只打印 FFmpeg 命令，不执行")
	flags.BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	flags.BoolVar(&listResolutions, "list-resolutions", false, "列出分辨率预设并退出")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: squeeze [flags] [input_file]")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}

	logging.Init(verbose)

	if listResolutions {
		printPresets()
		return 0
	}

	// 2. 加载配置文件，非法配置在任何工作开始前退出
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			log.Warn().Err(err).Msg("无法定位配置文件，使用内置默认值")
		}
		configPath = p
	}
	defaults, err := config.LoadDefaults(configPath)
	if err != nil {
		log.Error().Err(err).Str("config", configPath).Msg("配置错误")
		return 1
	}

	// 3. 合并命令行参数
	if inputPath == "" && flags.NArg() > 0 {
		inputPath = flags.Arg(0)
	}
	ov := overridesFromFlags(flags, inputPath, outputName, targetSize, maxFPS, maxResolution)

	stdin := bufio.NewReader(os.Stdin)
	req, err := config.Resolve(defaults, ov, config.NewStdinPrompter(stdin, os.Stdout))
	if err != nil {
		log.Error().Err(err).Msg("参数错误")
		return 1
	}

	// 4. 信号监听，取消时终止 ffmpeg 并清理临时目录
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &compressor.Compressor{
		Prober:    ffmpeg.NewProber(logging.WithComponent("probe")),
		Encoder:   ffmpeg.NewRunner(logging.WithComponent("ffmpeg")),
		Reporter:  compressor.NewConsoleReporter(stdin, os.Stdout, !noClipboard),
		OutputDir: outputDir,
		DryRun:    dryRun,
		Log:       logging.WithComponent("compressor"),
	}

	log.Info().
		Str("input", req.InputPath).
		Float64("target_mb", req.Options.TargetSizeMB).
		Int("max_fps", req.Options.MaxFPS).
		Str("max_resolution", describeResolution(req.Options.MaxResolution)).
		Msg("开始压缩")

	// 5. 执行
	if _, err := c.Compress(ctx, req); err != nil {
		if ctx.Err() != nil {
			log.Warn().Msg("用户中断，已退出")
			return 1
		}
		log.Error().Err(err).Msg("压缩失败")
		return 1
	}
	return 0
}

// overridesFromFlags 只收集用户显式传入的参数，未传入的保留配置文件中的值
func overridesFromFlags(flags *pflag.FlagSet, input, name string, size float64, fps int, res string) config.Overrides {
	var ov config.Overrides
	if input != "" {
		ov.InputPath = &input
	}
	if name != "" {
		ov.OutputName = &name
	}
	if flags.Changed("target-size") {
		ov.TargetSizeMB = &size
	}
	if flags.Changed("max-fps") {
		ov.MaxFPS = &fps
	}
	if flags.Changed("max-resolution") {
		ov.MaxResolution = &res
	}
	return ov
}

func describeResolution(r *config.Resolution) string {
	if r == nil {
		return "-"
	}
	return r.String()
}

// printPresets 按分辨率分组打印预设表
func printPresets() {
	groups := map[config.Resolution][]string{}
	var order []config.Resolution
	for _, name := range config.PresetNames() {
		res := config.Presets[name]
		if _, ok := groups[res]; !ok {
			order = append(order, res)
		}
		groups[res] = append(groups[res], name)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].MaxDimension() > order[j].MaxDimension() })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "分辨率\t预设名")
	for _, res := range order {
		fmt.Fprintf(w, "%s\t%s\n", res, strings.Join(groups[res], ", "))
	}
	w.Flush()
}
