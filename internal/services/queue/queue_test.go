package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const uploadResponse = `{"data":{"img_name":"vwk7b.jpg","img_url":"http://s1.uploads.im/vwk7b.jpg",
	"img_view":"http://uploads.im/vwk7b.jpg","img_height":"600","img_width":"800",
	"thumb_url":"http://s1.uploads.im/t/vwk7b.jpg","thumb_height":75,"thumb_width":100,"resized":"0"}}`

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp.Publishing
	publishErr error
	deliveries chan amqp.Delivery
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) QueueInspect(name string) (amqp.Queue, error) {
	return amqp.Queue{Name: name, Messages: len(c.published)}, nil
}

func (c *fakeChannel) Close() error { return nil }

// fakeAcknowledger records acks and nacks by delivery tag.
type fakeAcknowledger struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func uploadedImage(t *testing.T) *uploadsim.UploadedImage {
	t.Helper()
	img, err := uploadsim.DecodeResponse(uploadResponse)
	require.NoError(t, err)
	return img
}

func TestPublishUploaded(t *testing.T) {
	ch := &fakeChannel{}
	q := newQueueService(ch, "uploaded_images", zap.NewNop())

	event := NewUploadedEvent("photo.jpg", uploadedImage(t))
	require.NoError(t, q.PublishUploaded(context.Background(), event))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, event.ID, msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var decoded UploadedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "photo.jpg", decoded.Source)
	assert.Equal(t, event.Image.ViewURL.String(), decoded.Image.ViewURL.String())

	stats, err := q.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["pending_events"])
	assert.Equal(t, "uploaded_images", stats["queue"])
	assert.Equal(t, "healthy", q.HealthCheck())
}

func TestPublishUploadedErrors(t *testing.T) {
	brokerErr := errors.New("channel closed")
	q := newQueueService(&fakeChannel{publishErr: brokerErr}, "uploaded_images", zap.NewNop())

	err := q.PublishUploaded(context.Background(), NewUploadedEvent("a.png", uploadedImage(t)))
	assert.ErrorIs(t, err, brokerErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = q.PublishUploaded(ctx, NewUploadedEvent("a.png", uploadedImage(t)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishUploadedConcurrently(t *testing.T) {
	ch := &fakeChannel{}
	q := newQueueService(ch, "uploaded_images", zap.NewNop())
	img := uploadedImage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, q.PublishUploaded(context.Background(), NewUploadedEvent("a.png", img)))
		}()
	}
	wg.Wait()

	assert.Len(t, ch.published, 20)
}

func TestConsume(t *testing.T) {
	ack := &fakeAcknowledger{}
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 3)}
	q := newQueueService(ch, "uploaded_images", zap.NewNop())

	good, err := json.Marshal(NewUploadedEvent("a.png", uploadedImage(t)))
	require.NoError(t, err)
	rejected, err := json.Marshal(NewUploadedEvent("reject.png", uploadedImage(t)))
	require.NoError(t, err)

	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: good}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("{not json")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: rejected}
	close(ch.deliveries)

	var sources []string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.Consume(ctx, "test", func(ctx context.Context, event *UploadedEvent) error {
		sources = append(sources, event.Source)
		if event.Source == "reject.png" {
			return errors.New("rejected")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png", "reject.png"}, sources)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
}

func TestConsumeStopsOnContext(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	q := newQueueService(ch, "uploaded_images", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Consume(ctx, "test", func(context.Context, *UploadedEvent) error { return nil })
	assert.NoError(t, err)
}
