package secretstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memKeychain is an in-memory Keychain used in tests so they don't touch
// the real OS keychain.
type memKeychain struct {
	mu   sync.Mutex
	data map[string]CredentialBundle
}

func newMemKeychain() *memKeychain {
	return &memKeychain{data: make(map[string]CredentialBundle)}
}

func (k *memKeychain) Set(id string, bundle CredentialBundle) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[id] = bundle
	return nil
}

func (k *memKeychain) Get(id string) (CredentialBundle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.data[id]
	if !ok {
		return nil, &secretNotFoundError{id: id}
	}
	return b, nil
}

func (k *memKeychain) Delete(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, id)
	return nil
}

func newTestStore(t *testing.T) (*Store, *memKeychain) {
	t.Helper()
	idx, err := OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	kc := newMemKeychain()
	return NewStore(idx, kc), kc
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	meta, err := store.Save(KindMotherDuck, "md1", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)

	bundle, err := store.Get(meta.ID)
	require.NoError(t, err)
	require.Equal(t, "T", bundle.Credentials["token"].Expose())
}

func TestStore_DeleteThenGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	meta, err := store.Save(KindMotherDuck, "md1", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(meta.ID))
	_, err = store.Get(meta.ID)
	require.Error(t, err)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	meta, err := store.Save(KindMotherDuck, "md1", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(meta.ID))
	require.NoError(t, store.Delete(meta.ID)) // second delete must not error
}

func TestStore_SaveValidatesRequiredFields(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(KindS3, "bucket", map[string]string{"key_id": "k"}, nil, "", "")
	require.Error(t, err)
}

func TestStore_SaveHTTPEitherAuthMode(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(KindHTTP, "api", map[string]string{"bearer_token": "tok"}, nil, "", "")
	require.NoError(t, err)

	_, err = store.Save(KindHTTP, "api2", map[string]string{"basic_username": "u", "basic_password": "p"}, nil, "", "")
	require.NoError(t, err)

	_, err = store.Save(KindHTTP, "api3", map[string]string{"basic_username": "u"}, nil, "", "")
	require.Error(t, err)
}

func TestStore_ListFiltersByKind(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(KindMotherDuck, "a", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)
	_, err = store.Save(KindS3, "b", map[string]string{"key_id": "k", "secret": "s"}, nil, "", "")
	require.NoError(t, err)

	list, err := store.List(KindS3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b", list[0].Name)
}

func TestStore_CleanupOrphaned(t *testing.T) {
	store, kc := newTestStore(t)
	meta, err := store.Save(KindMotherDuck, "a", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)

	// Simulate an orphan: keychain entry disappears without going through Delete.
	require.NoError(t, kc.Delete(meta.ID))

	removed, err := store.CleanupOrphaned()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	list, err := store.List("")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestStore_UpdateCannotTouchCredentials(t *testing.T) {
	store, _ := newTestStore(t)
	meta, err := store.Save(KindMotherDuck, "a", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)

	newName := "renamed"
	updated, err := store.Update(meta.ID, UpdateFields{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	bundle, err := store.Get(meta.ID)
	require.NoError(t, err)
	require.Equal(t, "T", bundle.Credentials["token"].Expose()) // unchanged
}

func TestStore_LastUsedUpdatedOnGet(t *testing.T) {
	store, _ := newTestStore(t)
	meta, err := store.Save(KindMotherDuck, "a", map[string]string{"token": "T"}, nil, "", "")
	require.NoError(t, err)
	require.Nil(t, meta.LastUsed)

	bundle, err := store.Get(meta.ID)
	require.NoError(t, err)
	require.NotNil(t, bundle.Metadata.LastUsed)
	require.WithinDuration(t, time.Now(), *bundle.Metadata.LastUsed, 5*time.Second)
}
