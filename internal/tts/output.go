package tts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// assetWriter persists finished audio assets. Every asset lands in the
// local audio dir; when a network share dir is configured and reachable
// the asset is mirrored there best-effort. The local path is always the
// one returned to callers.
type assetWriter struct {
	audioDir string
	shareDir string
	shareOK  bool
	log      *slog.Logger
}

func newAssetWriter(audioDir, shareDir string, log *slog.Logger) *assetWriter {
	w := &assetWriter{audioDir: audioDir, shareDir: shareDir, log: log}
	if shareDir == "" {
		return w
	}
	if err := os.MkdirAll(shareDir, 0o755); err != nil {
		w.log.Warn("network share dir unavailable", slog.String("dir", shareDir), slogError(err))
		return w
	}
	w.shareOK = true
	return w
}

func (w *assetWriter) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	local := filepath.Join(w.audioDir, name)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	w.mirror(name, data)
	return local, nil
}

// writeWav encodes raw PCM into a WAV asset and mirrors it like write.
func (w *assetWriter) writeWav(name string, pcm []byte, sampleRate, channels int) (string, error) {
	if err := os.MkdirAll(w.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	local := filepath.Join(w.audioDir, name)
	if err := encodeWav(local, pcm, sampleRate, channels); err != nil {
		return "", err
	}
	if w.shareOK {
		data, err := os.ReadFile(local)
		if err != nil {
			w.log.Warn("failed to read audio for mirroring", slogError(err))
			return local, nil
		}
		w.mirror(name, data)
	}
	return local, nil
}

func (w *assetWriter) mirror(name string, data []byte) {
	if !w.shareOK {
		return
	}
	target := filepath.Join(w.shareDir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		w.log.Warn("failed to mirror audio to network share", slog.String("path", target), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
