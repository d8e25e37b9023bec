package pipeline

import (
	"context"
	"time"
)

// Join starts a bot for meetingURL on behalf of userID and creates the
// corresponding meeting row in "initializing".
func (o *Orchestrator) Join(ctx context.Context, meetingURL, botName, userID string) (string, error) {
	botID, err := o.bot.Join(ctx, meetingURL, botName)
	if err != nil {
		return "", err
	}
	if _, err := o.store.CreateMeeting(ctx, botID, userID, time.Now().UnixMilli()); err != nil {
		return "", err
	}
	return botID, nil
}

// Leave asks the provider to remove the bot from its meeting without
// touching local meeting state.
func (o *Orchestrator) Leave(ctx context.Context, meetingID string) error {
	return o.bot.Leave(ctx, meetingID)
}
