package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/retry"
)

type mockSender struct {
	params   []*telego.SendMessageParams
	err      error
	failures int
}

func (m *mockSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("api: 429 Too Many Requests")
	}
	return &telego.Message{MessageID: len(m.params)}, nil
}

func TestTelegram_Notify(t *testing.T) {
	sender := &mockSender{}
	n := NewTelegramWithSender(sender, 42, logger.Nop())

	require.NoError(t, n.Notify(context.Background(), "disk almost full"))
	require.Len(t, sender.params, 1)
	assert.Equal(t, int64(42), sender.params[0].ChatID.ID)
	assert.Equal(t, "[taskrunner] ALERT: disk almost full", sender.params[0].Text)
}

func TestTelegram_NotifyError(t *testing.T) {
	sender := &mockSender{err: errors.New("blocked by user")}
	n := NewTelegramWithSender(sender, 42, logger.Nop())

	err := n.Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by user")
	assert.Len(t, sender.params, 1)
}

func TestTelegram_NotifyRetriesRateLimit(t *testing.T) {
	sender := &mockSender{failures: 2}
	n := NewTelegramWithSender(sender, 42, logger.Nop())
	n.SetRetry(retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	require.NoError(t, n.Notify(context.Background(), "x"))
	assert.Len(t, sender.params, 3)
}

func TestNewTelegram_Validation(t *testing.T) {
	_, err := NewTelegram("", 1, logger.Nop())
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = NewTelegram("123:abc", 0, logger.Nop())
	assert.Error(t, err)

	_, err = NewTelegram("not a token", 1, logger.Nop())
	assert.Error(t, err)
}
