package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

func TestSizeResources_Clamps(t *testing.T) {
	limits := SizeResources(1 * gib) // tiny host: everything should hit the floor
	assert.Equal(t, uint64(2*gib), limits.PrimaryMemoryBytes)
	assert.Equal(t, uint64(512*mib), limits.PoolMemoryBytes)
	assert.GreaterOrEqual(t, limits.PrimaryThreads, 2)
	assert.GreaterOrEqual(t, limits.PoolThreads, 2)

	huge := SizeResources(256 * gib)
	assert.Equal(t, uint64(16*gib), huge.PrimaryMemoryBytes)
	assert.Equal(t, uint64(8*gib), huge.PoolMemoryBytes)
}

func TestAttachmentRegistry_RegistersInOrderAndRejectsDuplicateAlias(t *testing.T) {
	reg := NewAttachmentRegistry()
	require.True(t, reg.Register(Attachment{Alias: "pg", Kind: AttachmentPostgres}))
	require.True(t, reg.Register(Attachment{Alias: "md", Kind: AttachmentMotherDuck}))
	require.False(t, reg.Register(Attachment{Alias: "pg", Kind: AttachmentMySQL}))

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "pg", snap[0].Alias)
	assert.Equal(t, "md", snap[1].Alias)
}

func TestMotherDuckToken_SetGetClear(t *testing.T) {
	tok := &MotherDuckToken{}
	assert.Equal(t, "", tok.Get())
	tok.Set("secret-token")
	assert.Equal(t, "secret-token", tok.Get())
	tok.Clear()
	assert.Equal(t, "", tok.Get())
}

func TestPermit_AcquireBoundedByMaxConnections(t *testing.T) {
	// Exercises the semaphore directly: outstanding permits must never
	// exceed max_connections.
	p := &Pool{
		cfg:       Config{PermitTimeout: 50 * time.Millisecond},
		connSem:   semaphore.NewWeighted(1),
		streamSem: semaphore.NewWeighted(1),
	}

	ctx := context.Background()
	first, err := p.AcquirePermit(ctx)
	require.NoError(t, err)

	_, err = p.AcquirePermit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	first.Release()
	second, err := p.AcquirePermit(ctx)
	require.NoError(t, err)
	second.Release()
}

func TestAttachStatement_Kinds(t *testing.T) {
	stmt, err := attachStatement(Attachment{Kind: AttachmentMotherDuck, ConnectionString: "md:mydb"})
	require.NoError(t, err)
	assert.Equal(t, "ATTACH 'md:mydb'", stmt)

	stmt, err = attachStatement(Attachment{Kind: AttachmentPlain, ConnectionString: "/tmp/x.db", Alias: "x", ReadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "ATTACH '/tmp/x.db' AS x (READ_ONLY)", stmt)

	stmt, err = attachStatement(Attachment{Kind: AttachmentPostgres, ConnectionString: "host=h", Alias: "pg", SecretName: "secret_pg"})
	require.NoError(t, err)
	assert.Equal(t, `ATTACH 'host=h' AS pg (TYPE POSTGRES, SECRET "secret_pg")`, stmt)
}
