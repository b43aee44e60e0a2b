package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cashcast/internal/amqp"
	"cashcast/internal/core"
	"cashcast/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrainer struct {
	mu      sync.Mutex
	calls   []services.TrainRequest
	fail    map[string]error
	stored  []services.TrainRequest
	listErr error

	delay   time.Duration
	running int32
	maxSeen int32
}

func (f *fakeTrainer) ModelName(g core.Granularity, accountID *int64, lags int) string {
	if lags == 0 {
		lags = 14
	}
	return core.ModelName(g, accountID, lags)
}

func (f *fakeTrainer) Train(_ context.Context, req services.TrainRequest) (services.TrainResult, error) {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(f.delay)

	name := f.ModelName(req.Granularity, req.AccountID, req.Lags)
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err := f.fail[name]
	f.mu.Unlock()
	if err != nil {
		return services.TrainResult{}, err
	}
	return services.TrainResult{Name: name, Payload: core.TrainingPayload{Granularity: req.Granularity, RunID: "run"}}, nil
}

func (f *fakeTrainer) StoredModels(_ context.Context) ([]services.TrainRequest, error) {
	return f.stored, f.listErr
}

func TestTrainingWorker_HandleTrainRequest(t *testing.T) {
	fake := &fakeTrainer{}
	w := NewTrainingWorker(fake, nil)
	id := int64(4)

	err := w.HandleTrainRequest(context.Background(), amqp.NewTrainRequestMessage(core.Monthly, &id, 6, true))
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	got := fake.calls[0]
	assert.Equal(t, core.Monthly, got.Granularity)
	assert.Equal(t, &id, got.AccountID)
	assert.Equal(t, 6, got.Lags)
	assert.True(t, got.Force)
	assert.Equal(t, 0, w.locks.size())
}

func TestTrainingWorker_HandleTrainRequestError(t *testing.T) {
	fake := &fakeTrainer{fail: map[string]error{"daily:all:lags=14": errors.New("database is locked")}}
	w := NewTrainingWorker(fake, nil)

	err := w.HandleTrainRequest(context.Background(), amqp.NewTrainRequestMessage(core.Daily, nil, 14, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily:all:lags=14")
	assert.Contains(t, err.Error(), "database is locked")
}

func TestTrainingWorker_SerializesSameModel(t *testing.T) {
	fake := &fakeTrainer{delay: 20 * time.Millisecond}
	w := NewTrainingWorker(fake, nil)
	msg := amqp.NewTrainRequestMessage(core.Daily, nil, 14, false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.HandleTrainRequest(context.Background(), msg))
		}()
	}
	wg.Wait()

	assert.Len(t, fake.calls, 4)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.maxSeen))
	assert.Equal(t, 0, w.locks.size())
}

func TestTrainingWorker_DifferentModelsRunConcurrently(t *testing.T) {
	fake := &fakeTrainer{delay: 50 * time.Millisecond}
	w := NewTrainingWorker(fake, nil)

	var wg sync.WaitGroup
	for _, g := range []core.Granularity{core.Daily, core.Monthly} {
		wg.Add(1)
		go func(g core.Granularity) {
			defer wg.Done()
			assert.NoError(t, w.HandleTrainRequest(context.Background(), amqp.NewTrainRequestMessage(g, nil, 3, false)))
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.maxSeen))
}

func TestTrainingWorker_RetrainAll(t *testing.T) {
	id := int64(2)
	fake := &fakeTrainer{
		stored: []services.TrainRequest{
			{Granularity: core.Daily, Lags: 14},
			{Granularity: core.Monthly, AccountID: &id, Lags: 6},
			{Granularity: core.Monthly, Lags: 3},
		},
		fail: map[string]error{"monthly:account-2:lags=6": errors.New("boom")},
	}
	w := NewTrainingWorker(fake, nil)

	ok, err := w.RetrainAll(context.Background())

	assert.Equal(t, 2, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, fake.calls, 3, "a failure must not stop the remaining models")
}

func TestTrainingWorker_RetrainAllListError(t *testing.T) {
	w := NewTrainingWorker(&fakeTrainer{listErr: errors.New("no such table")}, nil)

	ok, err := w.RetrainAll(context.Background())
	assert.Zero(t, ok)
	assert.Error(t, err)
}

func TestTrainingWorker_RetrainAllCancelled(t *testing.T) {
	fake := &fakeTrainer{stored: []services.TrainRequest{{Granularity: core.Daily, Lags: 14}}}
	w := NewTrainingWorker(fake, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.RetrainAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestTrainingWorker_Schedule(t *testing.T) {
	w := NewTrainingWorker(&fakeTrainer{}, nil)
	ctx := context.Background()

	assert.Error(t, w.StartSchedule(ctx, "not a schedule"))
	assert.NoError(t, w.Stop(ctx), "stop without a schedule is a no-op")

	require.NoError(t, w.StartSchedule(ctx, "@daily"))
	assert.Error(t, w.StartSchedule(ctx, "@daily"), "second start must fail")
	assert.NoError(t, w.Stop(ctx))
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}
