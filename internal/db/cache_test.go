package db

import (
	"context"
	"testing"
	"time"

	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFinder struct {
	calls int
	next  *MemoryStore
}

func (f *countingFinder) FindByUsername(ctx context.Context, username string) (*model.Principal, error) {
	f.calls++
	return f.next.FindByUsername(ctx, username)
}

func TestCachedDirectory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "harry", "hash", model.RoleTrainee)
	require.NoError(t, err)

	finder := &countingFinder{next: store}
	dir := NewCachedDirectory(finder, 16, time.Minute)

	first, err := dir.FindByUsername(ctx, "harry")
	require.NoError(t, err)
	first.Permissions[0] = "mutated"

	second, err := dir.FindByUsername(ctx, "harry")
	require.NoError(t, err)
	assert.Equal(t, 1, finder.calls)
	assert.NotContains(t, second.Permissions, "mutated")

	dir.Forget("harry")
	_, err = dir.FindByUsername(ctx, "harry")
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls)
}

func TestCachedDirectory_MissesAreNotCached(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	finder := &countingFinder{next: store}
	dir := NewCachedDirectory(finder, 16, time.Minute)

	_, err := dir.FindByUsername(ctx, "ron")
	assert.True(t, IsNoRows(err))

	_, err = store.CreateUser(ctx, "ron", "hash", model.RoleTrainee)
	require.NoError(t, err)

	p, err := dir.FindByUsername(ctx, "ron")
	require.NoError(t, err)
	assert.Equal(t, "ron", p.Username)
	assert.Equal(t, 2, finder.calls)
}

func TestCachedDirectory_Expires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "harry", "hash", model.RoleTrainee)
	require.NoError(t, err)

	finder := &countingFinder{next: store}
	dir := NewCachedDirectory(finder, 16, 20*time.Millisecond)

	_, err = dir.FindByUsername(ctx, "harry")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = dir.FindByUsername(ctx, "harry")
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls)
}
