package secretinjector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondpilot/pondpilot-sub000/secretstore"
)

func TestSecretName(t *testing.T) {
	assert.Equal(t, "secret_abc_123", SecretName("abc-123"))
}

func TestRender_MotherDuck(t *testing.T) {
	ddl, err := Render("abc-123", secretstore.KindMotherDuck, map[string]string{"token": "T"}, "")
	require.NoError(t, err)
	assert.Equal(t, `CREATE TEMPORARY SECRET IF NOT EXISTS secret_abc_123 (TYPE MOTHERDUCK, TOKEN 'T')`, ddl)
}

func TestRender_S3WithScope(t *testing.T) {
	ddl, err := Render("id1", secretstore.KindS3, map[string]string{"key_id": "K", "secret": "S"}, "s3://bucket")
	require.NoError(t, err)
	assert.Contains(t, ddl, "TYPE S3")
	assert.Contains(t, ddl, "KEY_ID 'K'")
	assert.Contains(t, ddl, "SECRET 'S'")
	assert.Contains(t, ddl, "SCOPE 's3://bucket'")
}

func TestRender_EscapesQuotesAndBackslashes(t *testing.T) {
	ddl, err := Render("id1", secretstore.KindMotherDuck, map[string]string{"token": `weird\back'slash`}, "")
	require.NoError(t, err)
	assert.Contains(t, ddl, `TOKEN 'weird\\back''slash'`)
}

func TestRender_StripsNUL(t *testing.T) {
	ddl, err := Render("id1", secretstore.KindMotherDuck, map[string]string{"token": "a\x00b"}, "")
	require.NoError(t, err)
	assert.Contains(t, ddl, "TOKEN 'ab'")
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render("id1", secretstore.Kind("Bogus"), map[string]string{}, "")
	require.Error(t, err)
}

func TestRender_Deterministic(t *testing.T) {
	fields := map[string]string{"username": "u", "password": "p", "host": "h", "port": "5432", "database": "d"}
	a, err := Render("id1", secretstore.KindPostgres, fields, "")
	require.NoError(t, err)
	b, err := Render("id1", secretstore.KindPostgres, fields, "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
