package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFillsDefaults(t *testing.T) {
	store := NewStore(0)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	id := store.Publish(Notification{Title: "Saved"})
	require.NotEmpty(t, id)

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, LevelInfo, list[0].Level)
	assert.Equal(t, now, list[0].CreatedAt)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	store := NewStore(10)

	var snapshots [][]Notification
	unsubscribe := store.Subscribe(func(list []Notification) {
		snapshots = append(snapshots, list)
	})

	id := store.Publish(Notification{Level: LevelError, Message: "boom"})
	require.True(t, store.Dismiss(id))
	require.False(t, store.Dismiss(id))

	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[0], 1)
	assert.Empty(t, snapshots[1])

	unsubscribe()
	unsubscribe()
	store.Publish(Notification{Message: "ignored"})
	assert.Len(t, snapshots, 2)
}

func TestStoreDropsOldestOverLimit(t *testing.T) {
	store := NewStore(2)

	store.Publish(Notification{ID: "a"})
	store.Publish(Notification{ID: "b"})
	store.Publish(Notification{ID: "c"})

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	store.Clear()
	assert.Empty(t, store.List())
}

func TestListIsACopy(t *testing.T) {
	store := NewStore(5)
	store.Publish(Notification{ID: "a", Title: "original"})

	list := store.List()
	list[0].Title = "changed"
	assert.Equal(t, "original", store.List()[0].Title)
}
