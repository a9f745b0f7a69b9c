package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJetStream struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeJetStream) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "DRAFT_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	at := time.Date(2025, time.August, 30, 18, 0, 0, 0, time.UTC)
	js := &fakeJetStream{}
	p := &NATSPublisher{js: js, clock: clockwork.NewFakeClockAt(at), config: DefaultNATSConfig()}
	draftID := uuid.New()

	p.Publish(context.Background(), draftID, events.PickMade, events.PickMadePayload{OverallPick: 4, Round: 1})

	require.Len(t, js.msgs, 1)
	msg := js.msgs[0]
	assert.Equal(t, "draftengine.draft.PickMade", msg.Subject)
	assert.Equal(t, draftID.String(), msg.Header.Get("Draft-ID"))
	assert.Equal(t, events.PickMade, msg.Header.Get("Event-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, msg.Header.Get("Event-ID"), env.EventID)
	assert.Equal(t, draftID.String(), env.DraftID)
	assert.True(t, at.Equal(env.Timestamp))

	var payload events.PickMadePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 4, payload.OverallPick)
}

func TestNATSPublisher_FailureIsSwallowed(t *testing.T) {
	p := &NATSPublisher{
		js:     &fakeJetStream{err: errors.New("no responders")},
		clock:  clockwork.NewFakeClock(),
		config: DefaultNATSConfig(),
	}
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), uuid.New(), events.TimerTick, events.TimerTickPayload{})
	})
}

func TestNATSPublisher_UnmarshalablePayload(t *testing.T) {
	js := &fakeJetStream{}
	p := &NATSPublisher{js: js, clock: clockwork.NewFakeClock(), config: DefaultNATSConfig()}

	p.Publish(context.Background(), uuid.New(), events.PickMade, make(chan int))

	assert.Empty(t, js.msgs)
}

func TestFanout(t *testing.T) {
	var got []string
	record := func(name string) events.Notifier {
		return events.NotifierFunc(func(_ context.Context, _ uuid.UUID, eventType string, _ any) {
			got = append(got, name+":"+eventType)
		})
	}

	f := Fanout{record("a"), LogNotifier{}, record("b")}
	f.Publish(context.Background(), uuid.New(), events.DraftStarted, events.DraftStartedPayload{})

	assert.Equal(t, []string{"a:DraftStarted", "b:DraftStarted"}, got)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "league.draft.DerbySelectionMade", Subject("league", events.DerbySelection))
}
