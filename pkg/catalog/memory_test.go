package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for _, tt := range []TaskType{
		{ID: "task-dev", Name: "Development"},
		{ID: "task-docs", Name: "Documentation"},
		{ID: "task-lunch", Name: "Lunch", IsProtected: true},
	} {
		cp := tt
		require.NoError(t, store.Create(context.Background(), &cp))
	}
	return store
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	task, err := store.Get(ctx, "task-dev")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Development", task.Name)
	assert.False(t, task.IsProtected)

	task, err = store.Get(ctx, "task-missing")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestMemoryStore_Create_DuplicateName(t *testing.T) {
	store := seedStore(t)
	err := store.Create(context.Background(), &TaskType{ID: "task-dup", Name: "development"})
	assert.Error(t, err, "names are unique case-insensitively")
}

func TestMemoryStore_GetByName(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	task, err := store.GetByName(ctx, "lunch")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "task-lunch", task.ID)
	assert.True(t, task.IsProtected)

	task, err = store.GetByName(ctx, "Siesta")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestMemoryStore_List_Ordered(t *testing.T) {
	store := seedStore(t)
	tasks, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "Development", tasks[0].Name)
	assert.Equal(t, "Documentation", tasks[1].Name)
	assert.Equal(t, "Lunch", tasks[2].Name)
}

func TestMemoryStore_Update(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	task, err := store.Update(ctx, "task-dev", "Engineering")
	require.NoError(t, err)
	assert.Equal(t, "Engineering", task.Name)

	_, err = store.Update(ctx, "task-missing", "Nope")
	assert.Error(t, err)
}

func TestMemoryStore_Update_Protected(t *testing.T) {
	store := seedStore(t)
	_, err := store.Update(context.Background(), "task-lunch", "Long Lunch")
	assert.ErrorIs(t, err, ErrProtected)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "task-dev"))

	task, err := store.Get(ctx, "task-dev")
	require.NoError(t, err)
	assert.Nil(t, task)

	assert.Error(t, store.Delete(ctx, "task-dev"), "already gone")
}

func TestMemoryStore_Delete_Protected(t *testing.T) {
	store := seedStore(t)
	assert.ErrorIs(t, store.Delete(context.Background(), "task-lunch"), ErrProtected)
}

func TestMemoryStore_Assignments(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Assign(ctx, "task-dev", "u1"))
	require.NoError(t, store.Assign(ctx, "task-dev", "u1"), "assigning twice is a no-op")
	require.NoError(t, store.Assign(ctx, "task-docs", "u2"))

	assignments, err := store.Assignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	removed, err := store.Unassign(ctx, "task-dev", "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Unassign(ctx, "task-dev", "u1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryStore_Assign_UnknownTask(t *testing.T) {
	store := seedStore(t)
	assert.Error(t, store.Assign(context.Background(), "task-missing", "u1"))
}

func TestMemoryStore_ListForUser(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Assign(ctx, "task-dev", "u1"))

	tasks, err := store.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2, "assigned task plus protected types")
	assert.Equal(t, "Development", tasks[0].Name)
	assert.Equal(t, "Lunch", tasks[1].Name)

	tasks, err = store.ListForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, tasks, 1, "protected types are available to everyone")
	assert.Equal(t, "Lunch", tasks[0].Name)
}
