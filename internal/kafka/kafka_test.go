package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishEvent_EncodesEventKeyedByType(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "paintchat.events.v1"}

	ev := models.NewEvent(models.EventImageGenerated, time.Now())
	ev.MimeType = "image/png"
	ev.ImageBytes = 42
	require.NoError(t, p.PublishEvent(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "image.generated", string(w.msgs[0].Key))

	var got models.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, 42, got.ImageBytes)
}

func TestPublishEvent_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "t"}
	err := p.PublishEvent(context.Background(), models.NewEvent(models.EventChatFailed, time.Now()))
	assert.ErrorContains(t, err, "no brokers")
}

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumer_HandlesAndCommitsEvents(t *testing.T) {
	ev := models.NewEvent(models.EventChatCompleted, time.Now())
	ev.Chars = 120
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: data},
			{Offset: 2, Value: []byte("{not json")},
		},
		cancel: cancel,
	}

	var seen []models.Event
	c := &Consumer{reader: r, handler: EventHandlerFunc(func(_ context.Context, ev *models.Event) error {
		seen = append(seen, *ev)
		return nil
	})}

	err = c.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, seen, 1)
	assert.Equal(t, ev.ID, seen[0].ID)
	assert.Equal(t, 120, seen[0].Chars)
	assert.Equal(t, []int64{1, 2}, r.committed, "malformed events are skipped, not retried forever")
}
