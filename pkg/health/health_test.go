package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(_ context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func serve(handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint_Passing(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "goroutines", Func: passing})

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode(t, w).Status)
}

func TestLiveEndpoint_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "db", Func: failing("connection refused"), FailureThreshold: 3})
	ctx := context.Background()

	h.liveness[0].run(ctx)
	h.liveness[0].run(ctx)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below threshold")

	h.liveness[0].run(ctx)
	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "postgres", Func: passing})

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w).Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_OneCheckFailing(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "postgres", Func: passing})
	h.AddReadiness(Check{Name: "redis", Func: failing("dial tcp: refused"), FailureThreshold: 1})
	h.SetReady(true)

	for _, p := range h.readiness {
		p.run(context.Background())
	}

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.NotContains(t, body.Checks, "postgres")
	assert.Equal(t, "dial tcp: refused", body.Checks["redis"])
	assert.False(t, h.IsReady())
}

func TestProbe_Recovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	p := newProbe(Check{Name: "flaky", FailureThreshold: 1, Func: func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}})

	p.run(context.Background())
	_, failed := p.failure()
	assert.True(t, failed)

	fail.Store(false)
	p.run(context.Background())
	_, failed = p.failure()
	assert.False(t, failed)
	assert.Nil(t, p.lastErr.Load())
}

func TestProbe_Timeout(t *testing.T) {
	p := newProbe(Check{Name: "slow", Timeout: 10 * time.Millisecond, FailureThreshold: 1, Func: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	p.run(context.Background())
	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestRun_StopsOnCancel(t *testing.T) {
	var calls atomic.Int64
	h := New()
	h.AddLiveness(Check{Name: "count", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "live", Func: passing})
	h.AddReadiness(Check{Name: "ready", Func: failing("flaky")})
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx, time.Millisecond) }()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(h.LiveEndpoint)
			serve(h.ReadyEndpoint)
			h.IsReady()
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestPingCheck_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	check := PingCheck(redisPinger{client})
	require.NoError(t, check(context.Background()))

	mr.Close()
	require.Error(t, check(context.Background()))
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }
