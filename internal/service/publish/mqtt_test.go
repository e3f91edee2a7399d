package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterease/internal/model"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; other mqtt.Client methods are not used.
type fakeClient struct {
	mqtt.Client
	err  error
	sent []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	p := NewWithClient(client, "home/meter/")

	assert.Equal(t, "home/meter/readings", p.Topic())

	event := model.ReadingEvent{ImageSetID: "abc", Current: "123", ConsumptionStatus: "not_computed"}
	require.NoError(t, p.Publish(event))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "home/meter/readings", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var got model.ReadingEvent
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, "123", got.Current)
}

func TestPublisher_DefaultPrefixAndError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewWithClient(client, "")

	assert.Equal(t, "meterease/readings", p.Topic())
	assert.Error(t, p.Publish(model.ReadingEvent{}))
}
