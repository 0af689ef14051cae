package connstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_ValidatePortBounds(t *testing.T) {
	base := Connection{Name: "db1", Type: KindPostgres, Port: 5432}
	require.NoError(t, base.Validate())

	tooHigh := base
	tooHigh.Port = 65536
	require.Error(t, tooHigh.Validate())

	tooLow := base
	tooLow.Port = -1
	require.Error(t, tooLow.Validate())
}

func TestConnection_ValidateRejectsUnknownType(t *testing.T) {
	c := Connection{Name: "db1", Type: "oracle", Port: 1521}
	require.Error(t, c.Validate())
}

func TestIndex_InsertGetListUpdateDelete(t *testing.T) {
	ix, err := OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	now := time.Now()
	c := Connection{
		ID: "c1", Name: "primary", Type: KindPostgres, Host: "localhost",
		Port: 5432, DatabaseName: "app", CreatedAt: now, UpdatedAt: now,
		Tags: []string{"prod", "read"},
	}
	require.NoError(t, ix.Insert(c))

	got, ok, err := ix.Get("c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "primary", got.Name)
	assert.Equal(t, []string{"prod", "read"}, got.Tags)

	list, err := ix.List(KindPostgres)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = ix.List(KindMySQL)
	require.NoError(t, err)
	assert.Empty(t, list)

	got.Name = "renamed"
	got.UpdatedAt = time.Now()
	require.NoError(t, ix.Update(got))

	got2, ok, err := ix.Get("c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "renamed", got2.Name)

	require.NoError(t, ix.Delete("c1"))
	_, ok, err = ix.Get("c1")
	require.NoError(t, err)
	assert.False(t, ok)
}
