package compressor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squeeze/internal/config"
	"squeeze/internal/ffmpeg"
)

type fakeProber struct {
	attrs ffmpeg.Attributes
	err   error
	calls int
}

func (p *fakeProber) Probe(ctx context.Context, inputFile string) (ffmpeg.Attributes, error) {
	p.calls++
	return p.attrs, p.err
}

type passCall struct {
	workDir string
	pass    int
	args    []string
}

type fakeEncoder struct {
	calls  []passCall
	failOn int
}

func (e *fakeEncoder) RunPass(ctx context.Context, workDir string, pass int, args []string, durationSec float64) error {
	e.calls = append(e.calls, passCall{workDir: workDir, pass: pass, args: args})
	if pass == e.failOn {
		return &ffmpeg.PassError{Pass: pass, Err: errors.New("exit status 1")}
	}
	if pass == 1 {
		return os.WriteFile(filepath.Join(workDir, "ffmpeg2pass-0.log"), []byte("stats"), 0644)
	}
	return os.WriteFile(args[len(args)-1], []byte("encoded"), 0644)
}

type fakeReporter struct {
	published  []Result
	acks       int
	onAck      func()
	publishErr error
}

func (r *fakeReporter) Publish(res Result) error {
	r.published = append(r.published, res)
	return r.publishErr
}

func (r *fakeReporter) AwaitAck(ctx context.Context) error {
	r.acks++
	if r.onAck != nil {
		r.onAck()
	}
	return nil
}

func newInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mkv")
	require.NoError(t, os.WriteFile(path, []byte("source"), 0644))
	return path
}

func newCompressor(t *testing.T, prober Prober, encoder Encoder, reporter Reporter) (*Compressor, string) {
	t.Helper()
	root := t.TempDir()
	return &Compressor{
		Prober:   prober,
		Encoder:  encoder,
		Reporter: reporter,
		TempRoot: root,
		Log:      zerolog.Nop(),
	}, root
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary directory should be removed")
}

func scenarioRequest(input string) config.Request {
	res := config.Presets["360p"]
	return config.Request{
		InputPath: input,
		Options: config.Options{
			OutputName:    "clip",
			TargetSizeMB:  8,
			MaxFPS:        24,
			MaxResolution: &res,
		},
	}
}

func TestCompressEndToEnd(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 60, FPS: 30, Width: 854, Height: 480}}
	encoder := &fakeEncoder{}
	reporter := &fakeReporter{}
	c, root := newCompressor(t, prober, encoder, reporter)

	var outputAtAck bool
	reporter.onAck = func() {
		_, err := os.Stat(reporter.published[0].OutputFile)
		outputAtAck = err == nil
	}

	res, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))
	require.NoError(t, err)

	assert.Equal(t, 917, res.VideoBitrateKbps)
	assert.Equal(t, []string{"fps=fps=24", "scale=640:-2"}, res.Filters)
	assert.True(t, res.Temporary)
	assert.Equal(t, "clip.mp4", filepath.Base(res.OutputFile))
	assert.Equal(t, int64(len("encoded")), res.OutputSize)

	require.Len(t, encoder.calls, 2)
	assert.Equal(t, 1, encoder.calls[0].pass)
	assert.Equal(t, 2, encoder.calls[1].pass)
	assert.Equal(t, encoder.calls[0].workDir, encoder.calls[1].workDir)
	assert.Equal(t, root, filepath.Dir(encoder.calls[0].workDir))
	assert.Equal(t, encoder.calls[0].workDir, filepath.Dir(res.OutputFile))
	assert.Contains(t, strings.Join(encoder.calls[0].args, " "), "-b:v 917k")

	require.Len(t, reporter.published, 1)
	assert.Equal(t, 1, reporter.acks)
	assert.True(t, outputAtAck, "output must still exist while waiting for acknowledgement")

	assertEmptyDir(t, root)
}

func TestCompressPass1FailureSkipsPass2(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 60, FPS: 30, Width: 854, Height: 480}}
	encoder := &fakeEncoder{failOn: 1}
	reporter := &fakeReporter{}
	c, root := newCompressor(t, prober, encoder, reporter)

	_, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))

	var pe *ffmpeg.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Pass)
	assert.Len(t, encoder.calls, 1)
	assert.Empty(t, reporter.published)
	assertEmptyDir(t, root)
}

func TestCompressPass2FailureIsNotReported(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 60, FPS: 30, Width: 854, Height: 480}}
	encoder := &fakeEncoder{failOn: 2}
	reporter := &fakeReporter{}
	c, root := newCompressor(t, prober, encoder, reporter)

	_, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))

	var pe *ffmpeg.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Pass)
	assert.Empty(t, reporter.published)
	assert.Zero(t, reporter.acks)
	assertEmptyDir(t, root)
}

func TestCompressProbeFailureStopsBeforeEncode(t *testing.T) {
	prober := &fakeProber{err: ffmpeg.ErrProbe}
	encoder := &fakeEncoder{}
	c, root := newCompressor(t, prober, encoder, &fakeReporter{})

	_, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))
	assert.ErrorIs(t, err, ffmpeg.ErrProbe)
	assert.Empty(t, encoder.calls)
	assertEmptyDir(t, root)
}

func TestCompressRejectsNonPositiveBitrate(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 3 * 3600, FPS: 30, Width: 1920, Height: 1080}}
	encoder := &fakeEncoder{}
	c, root := newCompressor(t, prober, encoder, &fakeReporter{})

	_, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))
	assert.ErrorIs(t, err, ErrBitrateTooLow)
	assert.Empty(t, encoder.calls)
	assertEmptyDir(t, root)
}

func TestCompressMissingInput(t *testing.T) {
	prober := &fakeProber{}
	c, _ := newCompressor(t, prober, &fakeEncoder{}, &fakeReporter{})

	_, err := c.Compress(context.Background(), scenarioRequest(filepath.Join(t.TempDir(), "nope.mp4")))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, prober.calls)
}

func TestCompressOutputDirSkipsAcknowledgement(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 60, FPS: 30, Width: 854, Height: 480}}
	encoder := &fakeEncoder{}
	reporter := &fakeReporter{publishErr: ErrClipboardUnsupported}
	c, root := newCompressor(t, prober, encoder, reporter)
	c.OutputDir = filepath.Join(t.TempDir(), "out")

	res, err := c.Compress(context.Background(), scenarioRequest(newInput(t)))
	require.NoError(t, err)

	assert.False(t, res.Temporary)
	assert.Equal(t, filepath.Join(c.OutputDir, "clip.mp4"), res.OutputFile)
	assert.FileExists(t, res.OutputFile)
	assert.Len(t, reporter.published, 1)
	assert.Zero(t, reporter.acks)
	assertEmptyDir(t, root)
}

func TestCompressDryRun(t *testing.T) {
	prober := &fakeProber{attrs: ffmpeg.Attributes{DurationSeconds: 100, FPS: 60, Width: 1080, Height: 1920}}
	encoder := &fakeEncoder{}
	reporter := &fakeReporter{}
	c, root := newCompressor(t, prober, encoder, reporter)
	c.DryRun = true

	req := scenarioRequest(newInput(t))
	res, err := c.Compress(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 499, res.VideoBitrateKbps)
	assert.Equal(t, []string{"fps=fps=24", "scale=-2:640"}, res.Filters)
	assert.Contains(t, res.Command(1), "-pass 1")
	assert.Contains(t, res.Command(2), "-pass 2")
	assert.Empty(t, res.Command(3))
	assert.Empty(t, encoder.calls)
	assert.Empty(t, reporter.published)
	assertEmptyDir(t, root)
}

func TestConsoleReporter(t *testing.T) {
	var out bytes.Buffer
	var copied string
	r := NewConsoleReporter(strings.NewReader("\n"), &out, true)
	r.copy = func(text string) error {
		copied = text
		return nil
	}

	res := Result{OutputFile: "/tmp/x/clip.mp4", TargetSizeMB: 8, OutputSize: 7_500_000, VideoBitrateKbps: 917}
	require.NoError(t, r.Publish(res))
	assert.Equal(t, "/tmp/x/clip.mp4", copied)
	assert.Contains(t, out.String(), "clip.mp4")
	assert.Contains(t, out.String(), "917k")
	assert.Contains(t, out.String(), "输出大小: 7.5 MB (目标 8.0 MB")
	assert.Contains(t, out.String(), "剪贴板")
	assert.NotContains(t, out.String(), "超过目标")

	require.NoError(t, r.AwaitAck(context.Background()))
}

func TestConsoleReporterClipboardFailure(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleReporter(strings.NewReader(""), &out, true)
	r.copy = func(string) error { return ErrClipboardUnsupported }

	err := r.Publish(Result{OutputFile: "clip.mp4", TargetSizeMB: 1, OutputSize: 2_000_000})
	assert.ErrorIs(t, err, ErrClipboardUnsupported)
	assert.Contains(t, out.String(), "超过目标")
}

func TestConsoleReporterAwaitAckCancelled(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		pw.Close()
		pr.Close()
	})

	r := NewConsoleReporter(pr, &bytes.Buffer{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.AwaitAck(ctx), context.Canceled)
}
