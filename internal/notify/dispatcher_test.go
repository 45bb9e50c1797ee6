package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/suiterun/internal/models"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *recordingLogger) LogInfo(m string)  { l.add(m) }
func (l *recordingLogger) LogWarn(m string)  { l.add(m) }
func (l *recordingLogger) LogError(m string) { l.add(m) }

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type fakeChannel struct {
	name   string
	ready  bool
	reason string
	err    error
	panics bool
	block  bool
	calls  int
}

func (f *fakeChannel) Name() string          { return f.name }
func (f *fakeChannel) Ready() (bool, string) { return f.ready, f.reason }
func (f *fakeChannel) Send(ctx context.Context, s models.RunSummary) error {
	f.calls++
	if f.panics {
		panic("nil map")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestDispatch_FailureDoesNotStopOtherChannels(t *testing.T) {
	log := &recordingLogger{}
	a := &fakeChannel{name: "a", ready: true, err: errors.New("connection refused")}
	b := &fakeChannel{name: "b", ready: true}

	d := NewDispatcher(log, time.Second)
	var observed []string
	d.OnDelivery(func(ch string, ok bool) {
		if ok {
			observed = append(observed, ch+":ok")
		} else {
			observed = append(observed, ch+":error")
		}
	})

	got := d.Dispatch(context.Background(), models.RunSummary{}, []Channel{a, b})
	require.Len(t, got, 2)

	assert.Equal(t, DeliveryFailed, got[0].Status)
	var de *DeliveryError
	require.True(t, errors.As(got[0].Err, &de))
	assert.Equal(t, "a", de.Channel)

	assert.Equal(t, DeliverySent, got[1].Status)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, []string{"a:error", "b:ok"}, observed)

	out := log.joined()
	assert.Contains(t, out, "[ERROR] a notification failed: connection refused")
	assert.Contains(t, out, "[OK] b notification sent")
}

func TestDispatch_SkipsChannelsThatAreNotReady(t *testing.T) {
	log := &recordingLogger{}
	off := &fakeChannel{name: "telegram", reason: "bot token not set"}

	got := NewDispatcher(log, time.Second).Dispatch(context.Background(), models.RunSummary{}, []Channel{off})
	require.Len(t, got, 1)
	assert.Equal(t, DeliverySkipped, got[0].Status)
	assert.Equal(t, "bot token not set", got[0].Reason)
	assert.Zero(t, off.calls)
	assert.Contains(t, log.joined(), "[WARNING] telegram notification skipped: bot token not set")
}

func TestDispatch_RecoversPanics(t *testing.T) {
	bad := &fakeChannel{name: "bad", ready: true, panics: true}
	good := &fakeChannel{name: "good", ready: true}

	got := NewDispatcher(nil, time.Second).Dispatch(context.Background(), models.RunSummary{}, []Channel{bad, good})
	require.Len(t, got, 2)
	assert.Equal(t, DeliveryFailed, got[0].Status)
	assert.Contains(t, got[0].Err.Error(), "panic: nil map")
	assert.Equal(t, DeliverySent, got[1].Status)
}

func TestDispatch_PerChannelTimeout(t *testing.T) {
	slow := &fakeChannel{name: "slow", ready: true, block: true}

	got := NewDispatcher(nil, 20*time.Millisecond).Dispatch(context.Background(), models.RunSummary{}, []Channel{slow})
	require.Len(t, got, 1)
	assert.Equal(t, DeliveryFailed, got[0].Status)
	assert.True(t, errors.Is(got[0].Err, context.DeadlineExceeded))
}
