package tts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAssetWriterDualWrite(t *testing.T) {
	audioDir := t.TempDir()
	shareDir := t.TempDir()
	w := newAssetWriter(audioDir, shareDir, newLogger())

	path, err := w.write("story.mp3", []byte("mp3 bytes"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(audioDir, "story.mp3") {
		t.Fatalf("expected local path, got %q", path)
	}
	for _, dir := range []string{audioDir, shareDir} {
		data, err := os.ReadFile(filepath.Join(dir, "story.mp3"))
		if err != nil {
			t.Fatalf("read %s copy: %v", dir, err)
		}
		if string(data) != "mp3 bytes" {
			t.Fatalf("unexpected contents in %s: %q", dir, data)
		}
	}
}

func TestAssetWriterShareFailureIsNotFatal(t *testing.T) {
	audioDir := t.TempDir()
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	// A share dir nested under a regular file cannot be created.
	w := newAssetWriter(audioDir, filepath.Join(blocker, "share"), newLogger())
	if w.shareOK {
		t.Fatalf("share dir should be unavailable")
	}

	path, err := w.write("story.mp3", []byte("mp3 bytes"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("local copy missing: %v", err)
	}
}

func TestAssetWriterCreatesAudioDirOnDemand(t *testing.T) {
	audioDir := filepath.Join(t.TempDir(), "nested", "audio")
	w := newAssetWriter(audioDir, "", newLogger())

	if _, err := w.write("story.mp3", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(audioDir, "story.mp3")); err != nil {
		t.Fatalf("audio dir not created on demand: %v", err)
	}
}

func TestWriteWavProducesRIFFHeader(t *testing.T) {
	audioDir := t.TempDir()
	shareDir := t.TempDir()
	w := newAssetWriter(audioDir, shareDir, newLogger())

	pcm := make([]byte, 512)
	path, err := w.writeWav("story.wav", pcm, 22050, 1)
	if err != nil {
		t.Fatalf("writeWav: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data[:16], []byte("WAVE")) {
		t.Fatalf("output is not a wav container: % x", data[:16])
	}
	mirrored, err := os.ReadFile(filepath.Join(shareDir, "story.wav"))
	if err != nil {
		t.Fatalf("read mirrored wav: %v", err)
	}
	if !bytes.Equal(mirrored, data) {
		t.Fatalf("mirrored wav differs from local copy")
	}
}

func TestWriteWavRejectsMisalignedPCM(t *testing.T) {
	w := newAssetWriter(t.TempDir(), "", newLogger())
	if _, err := w.writeWav("bad.wav", make([]byte, 3), 22050, 1); err == nil {
		t.Fatalf("expected error for misaligned pcm")
	}
}
