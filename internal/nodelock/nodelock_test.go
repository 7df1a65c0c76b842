package nodelock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameNode(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "db.sqlite"))

	unlock := m.Lock("a")
	acquired := make(chan struct{})
	go func() {
		unlock2 := m.Lock("a")
		close(acquired)
		unlock2()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same node acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestLockDoesNotBlockDifferentNodes(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "db.sqlite"))

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on unrelated node blocked")
	}
}

func TestStoreLockExclusiveAcrossManagers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	m1 := NewManager(dbPath)
	m2 := NewManager(dbPath)

	lock1, err := m1.AcquireStoreLock()
	require.NoError(t, err)

	_, err = m2.TryAcquireStoreLock()
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock1.Release())

	lock2, err := m2.TryAcquireStoreLock()
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}
