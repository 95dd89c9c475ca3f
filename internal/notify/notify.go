package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/tablesync"
)

const (
	parseModeHTML = "HTML"
	dedupWindow   = 10 * time.Minute
)

// Notifier posts reports and sync results to one Telegram chat. A Notifier
// without a sender is disabled and every call is a no-op.
type Notifier struct {
	sender Sender
	chatID int64
	dedup  *DedupLimiter
	logger *logging.Logger
}

// New creates a Notifier. sender may be nil.
func New(sender Sender, chatID int64, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		dedup:  NewDedupLimiter(dedupWindow),
		logger: logger.With("component", "notify"),
	}
}

// FromConfig builds a Notifier for the telegram section. A disabled
// section yields a disabled Notifier.
func FromConfig(cfg config.TelegramConfig, logger *logging.Logger) (*Notifier, error) {
	if !cfg.Enabled {
		return New(nil, 0, logger), nil
	}
	client, err := NewTGBotAPIClient(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return New(client, cfg.ChatID, logger), nil
}

// Enabled reports whether messages are actually sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil && n.chatID != 0
}

// NotifyReport sends the report text. The same report is sent at most once
// per ten minutes.
func (n *Notifier) NotifyReport(ctx context.Context, rec models.ReportRecord) error {
	return n.send(ctx, "report|"+rec.DedupKey(), formatReport(rec))
}

// NotifyOutcome sends the result of syncing rec.
func (n *Notifier) NotifyOutcome(ctx context.Context, rec models.ReportRecord, out tablesync.Outcome) error {
	return n.send(ctx, "sync|"+string(out.Status)+"|"+rec.DedupKey(), formatOutcome(rec, out))
}

func (n *Notifier) send(ctx context.Context, key, text string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.dedup.CanSend(key) {
		n.logger.DebugWithContext(ctx, "duplicate notification suppressed", "key", key)
		return nil
	}
	if err := n.sender.SendMessage(n.chatID, text, parseModeHTML); err != nil {
		n.dedup.Forget(key)
		n.logger.WarnWithContext(ctx, "telegram send failed", "error", err)
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
