package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strconv"
)

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDurationSeconds shells out to ffprobe to measure audioPath's
// duration, rounded to the nearest second. Probing is best-effort: if
// ffprobe is unavailable or its output is unparseable, the meeting is
// still processed with a duration of 0 rather than failing outright.
func probeDurationSeconds(ctx context.Context, audioPath string) int {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "json", audioPath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		slog.Warn("ffprobe failed, recording duration as 0", "path", audioPath, "err", err)
		return 0
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		slog.Warn("failed to parse ffprobe output, recording duration as 0", "path", audioPath, "err", err)
		return 0
	}

	seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return int(seconds + 0.5)
}
