package lockmap

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AddDropLookup(t *testing.T) {
	m := New()
	assert.False(t, m.Has(1))

	m.Add(1)
	assert.True(t, m.Has(1))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.RLock(1))
	require.NoError(t, m.RUnlock(1))

	m.Drop(1)
	assert.False(t, m.Has(1))

	err := m.RLock(1)
	assert.Error(t, err)
}

func TestManager_MultipleReadersConcurrently(t *testing.T) {
	m := New()
	m.Add(1)

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, m.RLock(1))
			n := atomic.AddInt32(&active, 1)
			for {
				max := atomic.LoadInt32(&maxActive)
				if n <= max || atomic.CompareAndSwapInt32(&maxActive, max, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			require.NoError(t, m.RUnlock(1))
		}()
	}
	wg.Wait()

	assert.Greater(t, atomic.LoadInt32(&maxActive), int32(1), "readers should overlap")
}

func TestManager_WriterExcludesReadersAndWriters(t *testing.T) {
	m := New()
	m.Add(1)

	require.NoError(t, m.WLock(1))

	done := make(chan struct{})
	go func() {
		require.NoError(t, m.RLock(1))
		close(done)
		m.RUnlock(1)
	}()

	writerDone := make(chan struct{})
	go func() {
		require.NoError(t, m.WLock(1))
		close(writerDone)
		m.WUnlock(1)
	}()

	select {
	case <-done:
		t.Fatal("reader acquired lock while writer held it")
	case <-writerDone:
		t.Fatal("second writer acquired lock while writer held it")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, m.WUnlock(1))
	<-done
	<-writerDone
}

func TestManager_WriterWakesAfterReadersDrain(t *testing.T) {
	m := New()
	m.Add(1)

	require.NoError(t, m.RLock(1))
	require.NoError(t, m.RLock(1))

	writerDone := make(chan struct{})
	go func() {
		require.NoError(t, m.WLock(1))
		close(writerDone)
		m.WUnlock(1)
	}()

	select {
	case <-writerDone:
		t.Fatal("writer acquired lock while readers held it")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, m.RUnlock(1))
	select {
	case <-writerDone:
		t.Fatal("writer acquired lock while one reader still held it")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, m.RUnlock(1))
	<-writerDone
}
