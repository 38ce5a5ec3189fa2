package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Call is one recorded external command.
type Call struct {
	Name string
	Args []string
}

// FakeMedia stands in for ffprobe, ffmpeg, the whisper interpreter, and
// yt-dlp. Outputs are written where the real tools would put them.
type FakeMedia struct {
	// Probe is returned verbatim for ffprobe calls.
	Probe string
	// AudioBytes is the size of extracted WAV files.
	AudioBytes int64
	// VideoBytes is the size of every video ffmpeg or yt-dlp produces.
	VideoBytes int64
	// Words is written as the whisper helper output.
	Words string
	// Fail makes the named binary return the error.
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

// NewFakeMedia returns a fake reporting a 30s clip with audio and speech.
func NewFakeMedia() *FakeMedia {
	return &FakeMedia{
		Probe:      ProbeJSON(true, 30),
		AudioBytes: 64 * 1024,
		VideoBytes: 32 * 1024,
		Words:      `{"words":[{"word":"Hello","start":0.0,"end":0.4},{"word":"world","start":0.5,"end":0.9}],"language":"en"}`,
	}
}

// ProbeJSON renders minimal ffprobe output.
func ProbeJSON(hasAudio bool, durationSeconds float64) string {
	streams := `{"codec_type":"video","width":1920,"height":1080}`
	if hasAudio {
		streams += `,{"codec_type":"audio"}`
	}
	return fmt.Sprintf(`{"streams":[%s],"format":{"duration":"%g","size":"2048"}}`, streams, durationSeconds)
}

// Run implements media.Runner.
func (f *FakeMedia) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	base := filepath.Base(name)
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: base, Args: slices.Clone(args)})
	failure := f.Fail[base]
	f.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	switch base {
	case "ffprobe":
		return []byte(f.Probe), nil
	case "ffmpeg":
		size := f.VideoBytes
		if slices.Contains(args, "pcm_s16le") {
			size = f.AudioBytes
		}
		return nil, writeSized(args[len(args)-1], size)
	case "python3":
		if len(args) < 3 {
			return nil, fmt.Errorf("python3: unexpected args %v", args)
		}
		return nil, os.WriteFile(args[2], []byte(f.Words), 0o644)
	case "yt-dlp":
		idx := slices.Index(args, "-o")
		if idx < 0 || idx+1 >= len(args) {
			return nil, fmt.Errorf("yt-dlp: no output in %v", args)
		}
		return nil, writeSized(args[idx+1], f.VideoBytes)
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

// Calls returns the commands run so far.
func (f *FakeMedia) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the recorded invocations of one binary.
func (f *FakeMedia) CallsTo(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Joined renders a call's arguments for substring assertions.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

func writeSized(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if size <= 0 {
		size = 1
	}
	return os.WriteFile(path, make([]byte, size), 0o644)
}
