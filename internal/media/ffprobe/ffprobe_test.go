package ffprobe_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"shortsfactory/internal/media/ffprobe"
)

func TestResultDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"123.45", 123.45, true},
		{" 8 ", 8, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"NaN", 0, false},
	}
	for _, tc := range tests {
		got, ok := ffprobe.Result{Format: ffprobe.Format{Duration: tc.raw}}.Duration()
		if got != tc.want || ok != tc.ok {
			t.Errorf("Duration(%q) = %v, %v; want %v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResultHasAudio(t *testing.T) {
	silent := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}
	if silent.HasAudio() {
		t.Fatal("video-only result reports audio")
	}
	withAudio := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "AUDIO"}}}
	if !withAudio.HasAudio() {
		t.Fatal("expected audio stream to be found")
	}
}

func TestClientInspectUsesRunner(t *testing.T) {
	var gotArgs []string
	client := ffprobe.New("/opt/ffprobe", func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "/opt/ffprobe" {
			t.Errorf("unexpected binary %s", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"video"}],"format":{"duration":"12.5"}}`), nil
	})
	result, err := client.Inspect(context.Background(), "/data/work/a.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if d, ok := result.Duration(); result.HasAudio() || !ok || d != 12.5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !slices.Equal(gotArgs[len(gotArgs)-2:], []string{"--", "/data/work/a.mp4"}) {
		t.Fatalf("path must follow --, got %v", gotArgs)
	}

	failing := ffprobe.New("", func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	if _, err := failing.Inspect(context.Background(), "x.mp4"); err == nil {
		t.Fatal("expected runner error")
	}
	if _, err := failing.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
	garbled := ffprobe.New("", func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	})
	if _, err := garbled.Inspect(context.Background(), "x.mp4"); err == nil {
		t.Fatal("expected decode error")
	}
}
