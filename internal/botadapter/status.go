package botadapter

import (
	"context"
	"fmt"
	"net/url"

	"github.com/example/scribevault/internal/apperrors"
)

// mediaShortcutPriority lists provider media-shortcut keys in descending
// preference order: lossless raw audio, then mp3, then any other mixed
// audio, then mixed video as a last resort.
var mediaShortcutPriority = []string{
	"audio_mixed_raw",
	"audio_mixed_mp3",
	"audio_mixed",
	"video_mixed",
}

// terminalRawStates are provider statuses from which no further progress
// is possible.
var terminalRawStates = map[string]bool{
	"done":              true,
	"fatal":             true,
	"error":             true,
	"payment_required":  true,
}

// IsTerminalRawStatus reports whether rawStatus is a terminal provider
// state.
func IsTerminalRawStatus(rawStatus string) bool {
	return terminalRawStates[rawStatus]
}

// Status is the normalized result of a status poll.
type Status struct {
	RawStatus  string
	AudioReady bool
	AudioURL   string
}

type mediaShortcut struct {
	Data struct {
		DownloadURL string `json:"download_url"`
	} `json:"data"`
}

type statusChange struct {
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

type rawStatusResponse struct {
	Status         *string                  `json:"status"`
	StatusChanges  []statusChange           `json:"status_changes"`
	MediaShortcuts map[string]mediaShortcut `json:"media_shortcuts"`
}

// normalize maps the provider's heterogeneous status surface onto Status:
// an explicit status field wins; otherwise the last status-change log
// entry is used. audio_ready is true iff any media shortcut in priority
// order yields a non-empty download URL.
func normalize(raw *rawStatusResponse) (Status, error) {
	var rawStatus string
	switch {
	case raw.Status != nil && *raw.Status != "":
		rawStatus = *raw.Status
	case len(raw.StatusChanges) > 0:
		rawStatus = raw.StatusChanges[len(raw.StatusChanges)-1].Code
	default:
		return Status{}, fmt.Errorf("%w: provider status response has no status field and no status changes", apperrors.ErrProvider)
	}

	var audioURL string
	for _, key := range mediaShortcutPriority {
		if shortcut, ok := raw.MediaShortcuts[key]; ok && shortcut.Data.DownloadURL != "" {
			audioURL = shortcut.Data.DownloadURL
			break
		}
	}

	return Status{
		RawStatus:  rawStatus,
		AudioReady: audioURL != "",
		AudioURL:   audioURL,
	}, nil
}

// Status polls the provider for botID's current status.
func (c *Client) Status(ctx context.Context, botID string) (Status, error) {
	var raw rawStatusResponse
	if err := c.doJSON(ctx, "GET", "/bots/"+url.PathEscape(botID)+"/status", nil, &raw); err != nil {
		return Status{}, err
	}
	return normalize(&raw)
}
