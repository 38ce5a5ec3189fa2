package ffmpeg_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shortsfactory/internal/media/ffmpeg"
)

func TestComposeArgsPerAudioSource(t *testing.T) {
	base := ffmpeg.ComposeOptions{
		Input:           "/data/work/a.mp4",
		FaceVideo:       "/data/face/face.mp4",
		BackupAudio:     "/data/audio/backup.mp3",
		DurationSeconds: 42.5,
		Output:          "/data/out/a_edited.mp4",
	}
	tests := []struct {
		name       string
		audio      ffmpeg.AudioSource
		wantMap    string
		wantInputs int
		wantAAC    bool
	}{
		{"original", ffmpeg.AudioOriginal, "0:a", 2, true},
		{"backup", ffmpeg.AudioBackup, "2:a", 3, true},
		{"silent", ffmpeg.AudioSilent, "", 2, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := base
			opts.Audio = tc.audio
			args, err := ffmpeg.ComposeArgs(opts)
			if err != nil {
				t.Fatalf("ComposeArgs: %v", err)
			}
			joined := strings.Join(args, " ")
			if got := strings.Count(joined, " -i "); got != tc.wantInputs {
				t.Fatalf("expected %d inputs, got %d: %s", tc.wantInputs, got, joined)
			}
			if tc.wantMap != "" && !strings.Contains(joined, "-map "+tc.wantMap) {
				t.Fatalf("expected audio map %s: %s", tc.wantMap, joined)
			}
			if tc.wantMap == "" && strings.Contains(joined, ":a") {
				t.Fatalf("silent composite must not map audio: %s", joined)
			}
			if strings.Contains(joined, "-c:a aac") != tc.wantAAC {
				t.Fatalf("unexpected audio codec flags: %s", joined)
			}
			if !strings.Contains(joined, "-stream_loop -1 -i /data/face/face.mp4") {
				t.Fatalf("face video must loop: %s", joined)
			}
			if args[len(args)-3] != "-t" || args[len(args)-2] != "42.5" || args[len(args)-1] != base.Output {
				t.Fatalf("unexpected tail %v", args[len(args)-3:])
			}
		})
	}
}

func TestComposeFilterStacksToVerticalFrame(t *testing.T) {
	filter := ffmpeg.ComposeFilter()
	for _, want := range []string{
		"[0:v]fps=30,scale=1080:1344:force_original_aspect_ratio=increase,crop=1080:1344,setsar=1[top]",
		"[1:v]fps=30,scale=1080:576:force_original_aspect_ratio=increase,crop=1080:576,setsar=1[bottom]",
		"[top][bottom]vstack=inputs=2[outv]",
	} {
		if !strings.Contains(filter, want) {
			t.Fatalf("expected %q in %q", want, filter)
		}
	}
	if ffmpeg.TopHeight+ffmpeg.BottomHeight != 1920 {
		t.Fatal("composite must be 1920 tall")
	}
}

func TestComposeArgsValidation(t *testing.T) {
	if _, err := ffmpeg.ComposeArgs(ffmpeg.ComposeOptions{Input: "a", FaceVideo: "f", Output: "o"}); err == nil {
		t.Fatal("expected duration error")
	}
	if _, err := ffmpeg.ComposeArgs(ffmpeg.ComposeOptions{Input: "a", FaceVideo: "f", Output: "o", DurationSeconds: 1, Audio: ffmpeg.AudioBackup}); err == nil {
		t.Fatal("expected backup path error")
	}
}

func TestBurnSubtitlesEscapesScriptPath(t *testing.T) {
	args := ffmpeg.BurnSubtitlesArgs("in.mp4", "/data/temp/it's:a.ass", "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, `-vf ass=/data/temp/it\'s\:a.ass`) {
		t.Fatalf("unexpected filter: %s", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("audio must be copied: %s", joined)
	}
}

func TestClientWrapsRunnerErrors(t *testing.T) {
	client := ffmpeg.New("", func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" {
			t.Errorf("unexpected binary %s", name)
		}
		return nil, errors.New("exit status 1")
	})
	err := client.ExtractAudio(context.Background(), "in.mp4", "out.wav")
	if err == nil || !strings.Contains(err.Error(), "extract audio") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	args := ffmpeg.ExtractAudioArgs("in.mp4", "out.wav")
	if !strings.Contains(strings.Join(args, " "), "-ar 16000 -ac 1 -c:a pcm_s16le out.wav") {
		t.Fatalf("unexpected extract args %v", args)
	}
}
