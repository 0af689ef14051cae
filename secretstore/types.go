// Package secretstore implements split secret storage: metadata lives in
// a local SQLite-compatible index, credential values live only in the OS
// keychain keyed by secret id.
package secretstore

import "time"

// Kind enumerates the secret types.
type Kind string

const (
	KindMotherDuck  Kind = "MotherDuck"
	KindS3          Kind = "S3"
	KindR2          Kind = "R2"
	KindGCS         Kind = "GCS"
	KindAzure       Kind = "Azure"
	KindPostgres    Kind = "Postgres"
	KindMySQL       Kind = "MySQL"
	KindHTTP        Kind = "HTTP"
	KindHuggingFace Kind = "HuggingFace"
	KindDuckLake    Kind = "DuckLake"
)

// requiredFields is the per-kind required-field table.
// HTTP is special-cased in Validate: it needs bearer_token OR the pair
// (basic_username, basic_password).
var requiredFields = map[Kind][]string{
	KindMotherDuck:  {"token"},
	KindHuggingFace: {"token"},
	KindDuckLake:    {"token"},
	KindS3:          {"key_id", "secret"},
	KindGCS:         {"key_id", "secret"},
	KindR2:          {"account_id", "key_id", "secret"},
	KindAzure:       {"account_name", "secret"},
	KindPostgres:    {"username", "password"},
	KindMySQL:       {"username", "password"},
}

// Validate checks fields against the required set for kind.
func Validate(kind Kind, fields map[string]string) error {
	if kind == KindHTTP {
		if fields["bearer_token"] != "" {
			return nil
		}
		if fields["basic_username"] != "" && fields["basic_password"] != "" {
			return nil
		}
		return errMissingField(kind, "bearer_token (or basic_username+basic_password)")
	}

	for _, f := range requiredFields[kind] {
		if fields[f] == "" {
			return errMissingField(kind, f)
		}
	}
	return nil
}

// Metadata is the persisted, non-secret half of a stored secret.
type Metadata struct {
	ID          string
	Name        string
	Kind        Kind
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastUsed    *time.Time
	Tags        []string
	Description string
	Scope       string
}

// CredentialValue wraps a single credential string so that it can be
// zeroed on drop. Expose() returns the plaintext; Zero() overwrites the
// backing bytes.
type CredentialValue struct {
	bytes []byte
}

// NewCredentialValue copies s into a CredentialValue-owned buffer.
func NewCredentialValue(s string) CredentialValue {
	b := make([]byte, len(s))
	copy(b, s)
	return CredentialValue{bytes: b}
}

// Expose returns the plaintext value.
func (c CredentialValue) Expose() string {
	return string(c.bytes)
}

// Zero overwrites the backing buffer with zero bytes.
func (c *CredentialValue) Zero() {
	for i := range c.bytes {
		c.bytes[i] = 0
	}
}

// CredentialBundle is the keychain-resident half of a stored secret: a map
// of field name to value. Zero wipes every value in the map.
type CredentialBundle map[string]CredentialValue

// Zero overwrites every credential value's backing bytes.
func (b CredentialBundle) Zero() {
	for k, v := range b {
		v.Zero()
		b[k] = v
	}
}

// Fields renders the bundle back to plain strings, for passing to the
// secret injector or a connectivity probe. Callers must not retain the
// result past the bundle's lifetime.
func (b CredentialBundle) Fields() map[string]string {
	out := make(map[string]string, len(b))
	for k, v := range b {
		out[k] = v.Expose()
	}
	return out
}

func bundleFromFields(fields map[string]string) CredentialBundle {
	b := make(CredentialBundle, len(fields))
	for k, v := range fields {
		b[k] = NewCredentialValue(v)
	}
	return b
}

type validationError struct {
	kind  Kind
	field string
}

func (e *validationError) Error() string {
	return "missing required field \"" + e.field + "\" for secret kind " + string(e.kind)
}

func errMissingField(kind Kind, field string) error {
	return &validationError{kind: kind, field: field}
}
