package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/infra/storage/memory"
)

const whale = "0x1111111111111111111111111111111111111111"

func scored(score int, dir domain.Direction) *domain.ScoredWallet {
	return &domain.ScoredWallet{
		Address:   whale,
		Chain:     domain.ChainEthereum,
		Window:    24 * time.Hour,
		Direction: dir,
		Score:     score,
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(context.Context, *domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

type failingRepo struct{ storage.AlertRepository }

func (failingRepo) InsertIfAbsent(context.Context, *domain.Alert) (bool, error) {
	return false, errors.New("database is closed")
}

func TestSeverityFor(t *testing.T) {
	cases := map[int]domain.Severity{
		0:   domain.SeverityNone,
		69:  domain.SeverityNone,
		70:  domain.SeverityInfo,
		79:  domain.SeverityInfo,
		80:  domain.SeverityWarning,
		89:  domain.SeverityWarning,
		90:  domain.SeverityCritical,
		100: domain.SeverityCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, SeverityFor(score), "score %d", score)
	}
}

func TestBucket(t *testing.T) {
	day := 24 * time.Hour
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Bucket(t0, day), Bucket(t0.Add(23*time.Hour+59*time.Minute), day))
	assert.Equal(t, Bucket(t0, day)+1, Bucket(t0.Add(day), day))
	assert.Equal(t, t0.Unix()/3600, Bucket(t0, time.Hour))
}

func TestEvaluate_DedupWithinBucketAndNewBucket(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	e := NewEngine(Config{Threshold: 70}, repo, nil, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := e.Evaluate(ctx, scored(81, domain.DirectionAccumulating), now)
	require.NoError(t, err)
	assert.Equal(t, StatusFired, first.Status)
	require.NotNil(t, first.Alert)
	assert.Equal(t, domain.SeverityWarning, first.Alert.Severity)
	assert.NotEmpty(t, first.Alert.ID)

	second, err := e.Evaluate(ctx, scored(81, domain.DirectionAccumulating), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusDeduplicated, second.Status)

	next, err := e.Evaluate(ctx, scored(81, domain.DirectionAccumulating), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusFired, next.Status)

	all, err := repo.List(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	e := NewEngine(Config{Threshold: 70}, repo, nil, nil)

	out, err := e.Evaluate(context.Background(), scored(69, domain.DirectionAccumulating), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusBelowThreshold, out.Status)
	assert.Nil(t, out.Alert)
}

func TestEvaluate_ConcurrentScansInsertOnce(t *testing.T) {
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	e := NewEngine(Config{}, repo, nil, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), scored(95, domain.DirectionDistributing), now)
			assert.NoError(t, err)
			if out.Status == StatusFired {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
}

func TestEvaluate_NotifierFailureKeepsAlert(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	n := &recordingNotifier{err: errors.New("webhook down")}
	e := NewEngine(Config{}, repo, n, nil)

	out, err := e.Evaluate(ctx, scored(90, domain.DirectionAccumulating), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusFired, out.Status)
	assert.False(t, out.Alert.WebhookSent)
	assert.Equal(t, 1, n.calls)

	stored, err := repo.List(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].WebhookSent)
}

func TestEvaluate_NotifierSuccessMarksSent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAlertRepo(memory.NewMemoryStorage())
	e := NewEngine(Config{}, repo, &recordingNotifier{}, nil)

	out, err := e.Evaluate(ctx, scored(75, domain.DirectionAccumulating), time.Now())
	require.NoError(t, err)
	assert.True(t, out.Alert.WebhookSent)

	stored, err := repo.List(ctx, storage.AlertFilter{})
	require.NoError(t, err)
	assert.True(t, stored[0].WebhookSent)
}

func TestEvaluate_PersistFailureIsStorageError(t *testing.T) {
	e := NewEngine(Config{}, failingRepo{}, nil, nil)
	_, err := e.Evaluate(context.Background(), scored(99, domain.DirectionAccumulating), time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}

func TestSummarize(t *testing.T) {
	a := func(dir domain.Direction, score int) *domain.Alert {
		return &domain.Alert{Direction: dir, Score: score}
	}

	empty := Summarize(nil)
	assert.Equal(t, domain.DominantNeutral, empty.DominantSignal)

	acc := Summarize([]*domain.Alert{
		a(domain.DirectionAccumulating, 81),
		a(domain.DirectionAccumulating, 72),
		a(domain.DirectionDistributing, 93),
	})
	assert.Equal(t, domain.DominantAccumulating, acc.DominantSignal)
	assert.Equal(t, 2, acc.Accumulating)
	assert.Equal(t, 1, acc.Distributing)
	assert.Equal(t, 93, acc.TopAlertScore)

	tie := Summarize([]*domain.Alert{
		a(domain.DirectionAccumulating, 81),
		a(domain.DirectionDistributing, 81),
	})
	assert.Equal(t, domain.DominantMixed, tie.DominantSignal)

	dist := Summarize([]*domain.Alert{a(domain.DirectionDistributing, 70)})
	assert.Equal(t, domain.DominantDistributing, dist.DominantSignal)
}
