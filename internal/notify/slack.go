package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/assetdesk/internal/models"
	"github.com/slack-go/slack"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts failed report runs to an IT channel.
type SlackNotifier struct {
	client  slackPoster
	channel string
	now     func() time.Time
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		now:     time.Now,
	}
}

func (n *SlackNotifier) NotifyFailure(ctx context.Context, s *models.ReportSchedule, runErr error) error {
	attachment := slack.Attachment{
		Color: "#ff0000",
		Title: fmt.Sprintf("Report schedule %q failed", s.Name),
		Text:  runErr.Error(),
		Fields: []slack.AttachmentField{
			{
				Title: "Report",
				Value: string(s.ReportType),
				Short: true,
			},
			{
				Title: "Frequency",
				Value: string(s.Frequency),
				Short: true,
			},
			{
				Title: "Scope",
				Value: scopeLabel(s.Scope),
				Short: true,
			},
			{
				Title: "Recipients",
				Value: strings.Join(s.Recipients, ", "),
				Short: false,
			},
		},
		Footer: "AssetDesk Report Scheduler",
		Ts:     json.Number(strconv.FormatInt(n.now().Unix(), 10)),
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "All departments"
	}
	return scope
}
