// Package notify pushes operator alerts to Slack when telemetry shows
// something worth a human look: FATAL log entries from the site, or a
// visitor session racking up rage clicks.
package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/summitroofing/beacon/internal/domain"
)

// SlackAPI abstracts the subset of the Slack client used by the Alerter,
// so tests run without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Alerter posts telemetry alerts to a Slack channel. A nil *Alerter is valid
// and drops everything, the pattern used when Slack is not configured.
type Alerter struct {
	api           SlackAPI
	channel       string
	rageThreshold int
}

// New creates an Alerter posting to the given channel. rageThreshold is the
// per-batch rage_click count that triggers a frustration alert; values < 1
// default to 3.
func New(api SlackAPI, channel string, rageThreshold int) *Alerter {
	if rageThreshold < 1 {
		rageThreshold = 3
	}
	return &Alerter{api: api, channel: channel, rageThreshold: rageThreshold}
}

// RageThreshold returns the configured per-batch rage_click alert threshold.
func (a *Alerter) RageThreshold() int {
	if a == nil {
		return 0
	}
	return a.rageThreshold
}

// RageClicks alerts when one ingested batch carries count rage_click events
// at or above the threshold.
func (a *Alerter) RageClicks(ctx context.Context, sessionID, pageURL string, count int) error {
	if a == nil || count < a.rageThreshold {
		return nil
	}

	text := fmt.Sprintf(":rotating_light: frustration signal: %d rage clicks in one batch\nsession `%s` on %s", count, sessionID, pageURL)
	_, _, err := a.api.PostMessageContext(ctx, a.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.Alerter.RageClicks: %w", err)
	}

	return nil
}

// FatalEntry alerts on a FATAL structured log entry from the site.
func (a *Alerter) FatalEntry(ctx context.Context, entry *domain.LogEntry) error {
	if a == nil || entry == nil || entry.Level < domain.LevelFatal {
		return nil
	}

	text := fmt.Sprintf(":fire: FATAL (%s): %s\nsession `%s` page %s", entry.Category, entry.Message, entry.SessionID, entry.PageURL)
	_, _, err := a.api.PostMessageContext(ctx, a.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.Alerter.FatalEntry: %w", err)
	}

	return nil
}
