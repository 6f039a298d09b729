package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore()
	store.Put(&Session{UserID: 1, ID: "a"})
	store.Put(&Session{UserID: 2, ID: "b"})
	store.Put(&Session{UserID: 1, ID: "c"})

	assert.Equal(t, 2, store.Len())
	sess, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "c", sess.ID)
	assert.ElementsMatch(t, []int64{1, 2}, store.UserIDs())

	sess, ok = store.Delete(1)
	require.True(t, ok)
	assert.Equal(t, "c", sess.ID)
	_, ok = store.Delete(1)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStore_LockIsPrunedAfterRelease(t *testing.T) {
	store := NewStore()

	for id := int64(0); id < 100; id++ {
		unlock := store.Lock(id)
		unlock()
	}
	assert.Equal(t, 0, store.lockCount())
}

func TestStore_LockSerializesOneUser(t *testing.T) {
	store := NewStore()
	unlock := store.Lock(7)

	acquired := make(chan struct{})
	go func() {
		release := store.Lock(7)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	// the waiter keeps the entry alive across the first release
	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return store.lockCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_LockOtherUsersIndependent(t *testing.T) {
	store := NewStore()
	unlock := store.Lock(1)
	defer unlock()

	var wg sync.WaitGroup
	for id := int64(2); id < 10; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			store.Lock(id)()
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, store.lockCount())
}
