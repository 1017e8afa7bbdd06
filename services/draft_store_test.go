package services

import (
	"context"
	"os"
	"testing"
	"time"

	"taxforms-api/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseDraftStore(t *testing.T, store DraftStore) {
	t.Helper()
	ctx := context.Background()

	w := NewWizard("user-1", RequiredFieldsPermissive)
	require.NoError(t, w.SelectFormType(w2FormType(), w2Fields()))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetField("employee_name", "Jane Doe"))
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "w2.jpg", StoragePath: "user-1/w2_copy_1.jpg", FieldName: "w2_copy"}))
	require.NoError(t, store.Save(ctx, w))

	loaded, err := store.Load(ctx, "user-1", w.ID)
	require.NoError(t, err)
	assert.Equal(t, StepFillingDetails, loaded.Step)
	assert.Equal(t, "Jane Doe", loaded.Data.W2.EmployeeName)
	assert.Equal(t, "user-1/w2_copy_1.jpg", loaded.Files["w2_copy"].StoragePath)
	require.Len(t, loaded.Fields, 3)

	// Changing the loaded copy does not touch the stored draft.
	require.NoError(t, loaded.SetField("employee_name", "Someone Else"))
	again, err := store.Load(ctx, "user-1", w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", again.Data.W2.EmployeeName)

	_, err = store.Load(ctx, "user-2", w.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "user-1", w.ID))
	_, err = store.Load(ctx, "user-1", w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewMemoryDraftStore())
}

func TestMemoryDraftStoreExpires(t *testing.T) {
	store := NewMemoryDraftStore()
	now := time.Now()
	store.now = fixedClock(now)

	w := NewWizard("user-1", "")
	require.NoError(t, store.Save(context.Background(), w))

	store.now = fixedClock(now.Add(DraftTTL + time.Minute))
	_, err := store.Load(context.Background(), "user-1", w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDraftStoreSweepsExpiredOnSave(t *testing.T) {
	store := NewMemoryDraftStore()
	now := time.Now()
	store.now = fixedClock(now)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Save(ctx, NewWizard("user-1", "")))
	}
	assert.Len(t, store.drafts, 100)

	store.now = fixedClock(now.Add(2 * DraftTTL))
	fresh := NewWizard("user-2", "")
	require.NoError(t, store.Save(ctx, fresh))

	assert.Len(t, store.drafts, 1)
	_, err := store.Load(ctx, "user-2", fresh.ID)
	assert.NoError(t, err)
}

func TestRedisDraftStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	exerciseDraftStore(t, NewRedisDraftStore(rdb))
}
