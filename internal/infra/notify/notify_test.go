package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

func testAlert() *domain.Alert {
	return &domain.Alert{
		ID:            "8a4f6c1e-7b0d-4c63-9a51-3e0b5e7f2d11",
		Address:       "0x1111111111111111111111111111111111111111",
		Chain:         domain.ChainEthereum,
		Label:         "whale",
		TriggeredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Score:         81,
		Severity:      domain.SeverityWarning,
		Direction:     domain.DirectionAccumulating,
		WindowSeconds: 86400,
		NetFlowUSD:    15_750_000,
		SubScores:     domain.SubScores{NetFlow: 40, Velocity: 11, Correlation: 15, ExchangeFlow: 15},
	}
}

func TestWebhook_SignedVersionedPayload(t *testing.T) {
	var got Payload
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sig = r.Header.Get(SignatureHeader)
		assert.Equal(t, Sign("s3cret", body), sig)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL, Secret: "s3cret"})
	require.NoError(t, wh.Notify(context.Background(), testAlert()))

	assert.NotEmpty(t, sig)
	assert.Equal(t, "1", got.Version)
	assert.Equal(t, "whale_alert", got.Event)
	assert.Equal(t, 81, got.Score)
	assert.Equal(t, domain.SeverityWarning, got.Severity)
	assert.Equal(t, 15, got.Breakdown.ExchangeFlow)
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()
	require.NoError(t, NewWebhook(WebhookConfig{URL: srv.URL}).Notify(context.Background(), testAlert()))
}

func TestWebhook_Non2xxIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(WebhookConfig{URL: srv.URL}).Notify(context.Background(), testAlert())
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

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

func TestKafka_KeyedByWallet(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{topic: "alerts", writer: w}

	require.NoError(t, k.Notify(context.Background(), testAlert()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ETH:0x1111111111111111111111111111111111111111", string(w.msgs[0].Key))

	var p Payload
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &p))
	assert.Equal(t, PayloadVersion, p.Version)

	w.err = errors.New("broker unavailable")
	err := k.Notify(context.Background(), testAlert())
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestNewKafka_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafka(KafkaConfig{Topic: "alerts"})
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	_, err = NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(context.Context, *domain.Alert) error {
	s.calls++
	return s.err
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	bad := &stubNotifier{name: "bad", err: errors.New("down")}
	good := &stubNotifier{name: "good"}

	err := Multi{bad, good}.Notify(context.Background(), testAlert())
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
}
