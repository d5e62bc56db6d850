package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CapIot.webnode/internal/models"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the parts of mqtt.Client used by MQTTPublisher.
type fakeClient struct {
	mqtt.Client
	connected bool
	token     *fakeToken
	sent      []published
}

func (c *fakeClient) IsConnectionOpen() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{connected: true, token: newFakeToken(nil, true)}
	p := newMQTTPublisher(client, "sensors/readings", testLogger())

	temp := 21.5
	r := models.Reading{ID: "abc", DeviceID: "esp32-1", Temperature: &temp, Timestamp: time.Now().UTC()}
	require.NoError(t, p.Publish(context.Background(), r))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "sensors/readings", client.sent[0].topic)
	assert.Equal(t, byte(0), client.sent[0].qos)

	var got models.Reading
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "esp32-1", got.DeviceID)
	assert.Equal(t, &temp, got.Temperature)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{connected: true, token: newFakeToken(errors.New("broker gone"), true)}
	p := newMQTTPublisher(client, "t", testLogger())

	err := p.Publish(context.Background(), models.Reading{DeviceID: "dev"})
	assert.ErrorContains(t, err, "broker gone")
}

func TestMQTTPublisher_NotConnected(t *testing.T) {
	client := &fakeClient{connected: false}
	p := newMQTTPublisher(client, "t", testLogger())

	err := p.Publish(context.Background(), models.Reading{DeviceID: "dev"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, client.sent)
}

func TestMQTTPublisher_ContextCanceled(t *testing.T) {
	client := &fakeClient{connected: true, token: newFakeToken(nil, false)}
	p := newMQTTPublisher(client, "t", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, models.Reading{DeviceID: "dev"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), models.Reading{}))
	p.Close()
}
