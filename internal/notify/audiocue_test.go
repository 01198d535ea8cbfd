package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioCueSenderPublishesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sub := rdb.Subscribe(context.Background(), audioCueChannel+"clinic-1")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	sender := NewAudioCueSender(rdb, nil)
	err = sender.Send(context.Background(), Event{
		TenantID: "clinic-1",
		Type:     EventNewMessage,
		Priority: PriorityHigh,
		AudioCue: CueNewMessage,
		Title:    "رسالة جديدة",
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var payload audioCuePayload
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, "audio_cue", payload.Type)
		assert.Equal(t, string(CueNewMessage), payload.Cue)
		assert.Equal(t, string(EventNewMessage), payload.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no audio cue published")
	}
}

func TestAudioCueSenderWithNoBackendsIsNoop(t *testing.T) {
	sender := NewAudioCueSender(nil, nil)
	assert.NoError(t, sender.Send(context.Background(), Event{TenantID: "clinic-1"}))
}
