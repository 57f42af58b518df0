package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenOp returns an operation that succeeds only when the store holds the
// wanted access token, and 401s otherwise. It counts invocations.
func tokenOp(store *memStore, want, result string, calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		calls.Add(1)

		if tok, _ := store.AccessToken(); tok != want {
			return "", errUnauthorized
		}

		return result, nil
	}
}

func TestCall_SuccessPassesThrough(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2"}
	m := newTestManager(store, ref)

	var calls atomic.Int32
	got, err := Call(context.Background(), m, tokenOp(store, "T1", "profile", &calls))

	require.NoError(t, err)
	assert.Equal(t, "profile", got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), ref.calls.Load())
}

func TestCall_NonAuthErrorNeverRefreshes(t *testing.T) {
	for _, status := range []int{400, 403, 404, 409, 500, 503} {
		store := newMemStore("T1", "R1")
		ref := &fakeRefresher{token: "T2"}
		m := newTestManager(store, ref)

		apiErr := statusErr(status)
		_, err := Call(context.Background(), m, func(context.Context) (string, error) {
			return "", apiErr
		})

		assert.ErrorIs(t, err, apiErr)
		assert.Equal(t, int32(0), ref.calls.Load(), "status %d", status)

		saves, clears := store.counts()
		assert.Zero(t, saves, "status %d", status)
		assert.Zero(t, clears, "status %d", status)
	}

	// Transport errors carry no status at all.
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2"}
	netErr := errors.New("dial tcp: connection refused")

	_, err := Call(context.Background(), newTestManager(store, ref), func(context.Context) (int, error) {
		return 0, netErr
	})

	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, int32(0), ref.calls.Load())
}

func TestCall_RefreshesAndRetries(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2"}
	m := newTestManager(store, ref)

	var calls atomic.Int32
	got, err := Call(context.Background(), m, tokenOp(store, "T2", "profile", &calls))

	require.NoError(t, err)
	assert.Equal(t, "profile", got)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestCall_ConcurrentUnauthorizedCoalesce(t *testing.T) {
	const n = 16

	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2", release: make(chan struct{})}
	m := newTestManager(store, ref)

	var (
		calls   atomic.Int32
		wg      sync.WaitGroup
		results = make([]string, n)
		errs    = make([]error, n)
	)

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], errs[i] = Call(context.Background(), m, tokenOp(store, "T2", "ok", &calls))
		}()
	}

	// Everyone but the trigger is queued behind the single refresh.
	require.Eventually(t, func() bool { return m.Queued() == n-1 }, waitTimeout, time.Millisecond)
	assert.Equal(t, int32(n), calls.Load(), "no retry may run while the refresh is in flight")

	close(ref.release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "ok", results[i])
	}

	assert.Equal(t, int32(1), ref.calls.Load())
	assert.Equal(t, int32(2*n), calls.Load())
}

func TestCall_RefreshFailureReturnsSessionExpired(t *testing.T) {
	const n = 4

	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{err: errors.New("invalid refresh token"), release: make(chan struct{})}
	m := newTestManager(store, ref)

	var (
		calls atomic.Int32
		wg    sync.WaitGroup
		errs  = make([]error, n)
	)

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = Call(context.Background(), m, tokenOp(store, "T2", "ok", &calls))
		}()
	}

	require.Eventually(t, func() bool { return m.Queued() == n-1 }, waitTimeout, time.Millisecond)
	close(ref.release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}

	// Only the first attempts ran; nothing was retried.
	assert.Equal(t, int32(n), calls.Load())
	assert.False(t, store.Authorized())
}

func TestCall_ScenarioQueuedBehindInFlightRefresh(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2", release: make(chan struct{})}
	m := newTestManager(store, ref)

	var (
		mu    sync.Mutex
		order []string
	)

	opNamed := func(name string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			if tok, _ := store.AccessToken(); tok != "T2" {
				return "", errUnauthorized
			}

			mu.Lock()
			order = append(order, name)
			mu.Unlock()

			return name, nil
		}
	}

	doneA := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), m, opNamed("A"))
		doneA <- err
	}()

	require.Eventually(t, m.Refreshing, waitTimeout, time.Millisecond)

	doneB := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), m, opNamed("B"))
		doneB <- err
	}()

	require.Eventually(t, func() bool { return m.Queued() == 1 }, waitTimeout, time.Millisecond)
	assert.Equal(t, int32(1), ref.calls.Load())

	close(ref.release)
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)

	access, _ := store.AccessToken()
	assert.Equal(t, "T2", access)
	assert.Equal(t, int32(1), ref.calls.Load())
	assert.ElementsMatch(t, []string{"A", "B"}, order)
}

func TestCall_RepeatedUnauthorizedRefreshesAgain(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2"}
	m := newTestManager(store, ref)

	var calls atomic.Int32
	_, err := Call(context.Background(), m, func(context.Context) (string, error) {
		if calls.Add(1) <= 2 {
			return "", errUnauthorized
		}

		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(2), ref.calls.Load())
}

func TestCall_ContextCanceledWhileQueued(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2", release: make(chan struct{})}
	m := newTestManager(store, ref)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := Call(ctx, m, func(context.Context) (string, error) { return "", errUnauthorized })
		errCh <- err
	}()

	require.Eventually(t, m.Refreshing, waitTimeout, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("Call did not return after cancellation")
	}

	// The refresh itself still completes for everyone else.
	close(ref.release)
	require.Eventually(t, func() bool { return !m.Refreshing() }, waitTimeout, time.Millisecond)

	access, _ := store.AccessToken()
	assert.Equal(t, "T2", access)
}

func TestCall_SignOutWhileQueuedFailsWithoutRetry(t *testing.T) {
	store := newMemStore("T1", "R1")
	ref := &fakeRefresher{token: "T2", release: make(chan struct{})}
	m := newTestManager(store, ref)

	var calls atomic.Int32

	errCh := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), m, tokenOp(store, "T2", "ok", &calls))
		errCh <- err
	}()

	require.Eventually(t, m.Refreshing, waitTimeout, time.Millisecond)
	m.SignOut()
	close(ref.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(waitTimeout):
		t.Fatal("Call did not return after sign-out")
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, store.Authorized())

	_, ok := store.AccessToken()
	assert.False(t, ok)
}

func TestExec(t *testing.T) {
	store := newMemStore("T1", "R1")
	m := newTestManager(store, &fakeRefresher{token: "T2"})

	var calls atomic.Int32
	err := Exec(context.Background(), m, func(context.Context) error {
		if tok, _ := store.AccessToken(); tok != "T2" {
			calls.Add(1)
			return errUnauthorized
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
