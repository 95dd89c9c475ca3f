package notify

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/tablesync"
)

type sentMessage struct {
	chatID    int64
	text      string
	parseMode string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(chatID int64, text, parseMode string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, parseMode: parseMode})
	return nil
}

func testRecord() models.ReportRecord {
	return models.ReportRecord{
		AccountID:   "42",
		AccountName: "A&B <Studio>",
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-01-07",
		Metrics:     map[string]any{"消费": 1234.5, "展现量": float64(9000), "点击率": "1.2%"},
	}
}

func TestNotifyReport(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, 100, nil)

	require.NoError(t, n.NotifyReport(context.Background(), testRecord()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(100), msg.chatID)
	assert.Equal(t, "HTML", msg.parseMode)
	assert.Contains(t, msg.text, "A&amp;B &lt;Studio&gt;")
	assert.Contains(t, msg.text, "2024-01-01 至 2024-01-07")
	assert.Contains(t, msg.text, "消费: 1234.50")
	assert.Contains(t, msg.text, "展现量: 9000")
	assert.Contains(t, msg.text, "点击率: 1.2%")
	assert.Contains(t, msg.text, "私信留资数: 0")
	assert.Len(t, strings.Split(msg.text, "\n"), len(models.MetricFields)+3)

	// Same report again is suppressed.
	require.NoError(t, n.NotifyReport(context.Background(), testRecord()))
	assert.Len(t, sender.sent, 1)
}

func TestNotifyOutcome(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, 100, nil)

	out := tablesync.Outcome{Status: tablesync.StatusFailed, Reason: "write to table tbl1 rejected: TableIdNotFound"}
	require.NoError(t, n.NotifyOutcome(context.Background(), testRecord(), out))
	require.Len(t, sender.sent, 1)
	assert.True(t, strings.HasPrefix(sender.sent[0].text, "❌"))
	assert.Contains(t, sender.sent[0].text, "TableIdNotFound")

	out.Status = tablesync.StatusSynced
	require.NoError(t, n.NotifyOutcome(context.Background(), testRecord(), out))
	assert.Len(t, sender.sent, 2, "a different status is a different message")
}

func TestNotifier_SendErrorAllowsRetry(t *testing.T) {
	sender := &fakeSender{err: stderrors.New("network down")}
	n := New(sender, 100, nil)

	err := n.NotifyReport(context.Background(), testRecord())
	assert.ErrorContains(t, err, "network down")

	sender.err = nil
	require.NoError(t, n.NotifyReport(context.Background(), testRecord()))
	assert.Len(t, sender.sent, 1)
}

func TestNotifier_Disabled(t *testing.T) {
	n, err := FromConfig(config.TelegramConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.NotifyReport(context.Background(), testRecord()))

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
}

func TestDedupLimiter_Window(t *testing.T) {
	dl := NewDedupLimiter(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	dl.now = func() time.Time { return now }

	assert.True(t, dl.CanSend("k"))
	assert.False(t, dl.CanSend("k"))
	assert.True(t, dl.CanSend("other"))

	now = now.Add(time.Minute)
	assert.True(t, dl.CanSend("k"))
}
