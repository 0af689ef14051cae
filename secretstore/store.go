package secretstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

// Store implements save/get/list/update/delete/test/cleanup for secrets
// over a local Index (metadata) and a Keychain (credential values).
type Store struct {
	index    *Index
	keychain Keychain
	logger   *logrus.Entry
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the default standard logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(index *Index, keychain Keychain, opts ...Option) *Store {
	s := &Store{
		index:    index,
		keychain: keychain,
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bundle is the full result of Get: metadata plus the credential map.
type Bundle struct {
	Metadata    Metadata
	Credentials CredentialBundle
}

// Save validates fields, allocates an id, writes the keychain payload
// before the index row (verifying it round-trips), then commits the
// index row. This ordering means an interrupted save leaves at worst an
// orphaned keychain entry, never an index row pointing at nothing.
func (s *Store) Save(kind Kind, name string, fields map[string]string, tags []string, scope, description string) (Metadata, error) {
	if err := Validate(kind, fields); err != nil {
		return Metadata{}, &engineerr.InvalidOperation{Message: err.Error(), Operation: "save_secret"}
	}

	id := uuid.NewString()
	now := s.now()
	meta := Metadata{
		ID:          id,
		Name:        name,
		Kind:        kind,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        tags,
		Description: description,
		Scope:       scope,
	}

	bundle := bundleFromFields(fields)
	if err := s.keychain.Set(id, bundle); err != nil {
		return Metadata{}, &engineerr.PersistenceError{Message: errors.Wrap(err, "write credentials to keychain").Error()}
	}

	// Verify by reading back before committing the index row.
	if _, err := s.keychain.Get(id); err != nil {
		return Metadata{}, &engineerr.PersistenceError{Message: errors.Wrap(err, "verify credentials round-trip").Error()}
	}

	if err := s.index.Insert(meta); err != nil {
		// Best effort: don't leave a keychain entry with no index row if we can help it.
		if delErr := s.keychain.Delete(id); delErr != nil {
			s.logger.WithError(delErr).WithField("secret_id", id).Warn("failed to roll back orphaned keychain entry after index insert failure")
		}
		return Metadata{}, &engineerr.PersistenceError{Message: errors.Wrap(err, "commit secret metadata").Error()}
	}

	return meta, nil
}

// Get reads metadata, reads credentials from the keychain, updates
// last_used, and returns both.
func (s *Store) Get(id string) (Bundle, error) {
	meta, ok, err := s.index.Get(id)
	if err != nil {
		return Bundle{}, &engineerr.PersistenceError{Message: err.Error()}
	}
	if !ok {
		return Bundle{}, &engineerr.SecretNotFound{ID: id}
	}

	creds, err := s.keychain.Get(id)
	if err != nil {
		return Bundle{}, &engineerr.SecretNotFound{ID: id}
	}

	now := s.now()
	if err := s.index.TouchLastUsed(id, now); err != nil {
		s.logger.WithError(err).WithField("secret_id", id).Warn("failed to update last_used")
	} else {
		meta.LastUsed = &now
	}

	return Bundle{Metadata: meta, Credentials: creds}, nil
}

// List returns metadata only, optionally filtered by kind.
func (s *Store) List(kind Kind) ([]Metadata, error) {
	list, err := s.index.List(kind)
	if err != nil {
		return nil, &engineerr.PersistenceError{Message: err.Error()}
	}
	return list, nil
}

// UpdateFields is the set of metadata fields Update may change. Required
// credential fields cannot be narrowed via this path; changing credential
// values requires a new Save.
type UpdateFields struct {
	Name        *string
	Tags        *[]string
	Scope       *string
	Description *string
}

// Update applies optional metadata field changes. Required fields live in
// the keychain bundle, not metadata, and none are exposed here, so Update
// performs no field validation and only ever adjusts descriptive metadata.
func (s *Store) Update(id string, fields UpdateFields) (Metadata, error) {
	meta, ok, err := s.index.Get(id)
	if err != nil {
		return Metadata{}, &engineerr.PersistenceError{Message: err.Error()}
	}
	if !ok {
		return Metadata{}, &engineerr.SecretNotFound{ID: id}
	}

	if fields.Name != nil {
		meta.Name = *fields.Name
	}
	if fields.Tags != nil {
		meta.Tags = *fields.Tags
	}
	if fields.Scope != nil {
		meta.Scope = *fields.Scope
	}
	if fields.Description != nil {
		meta.Description = *fields.Description
	}
	meta.UpdatedAt = s.now()

	if err := s.index.Update(meta); err != nil {
		return Metadata{}, &engineerr.PersistenceError{Message: err.Error()}
	}
	return meta, nil
}

// Delete is idempotent: delete(id); delete(id) behaves the same as a
// single delete(id). The keychain delete is best-effort; the index delete
// always runs.
func (s *Store) Delete(id string) error {
	if err := s.keychain.Delete(id); err != nil {
		s.logger.WithError(err).WithField("secret_id", id).Warn("best-effort keychain delete failed")
	}
	if err := s.index.Delete(id); err != nil {
		return &engineerr.PersistenceError{Message: err.Error()}
	}
	return nil
}

// CleanupOrphaned removes index rows whose keychain entry is missing
// (detected the same way Get detects it: a keychain read failure).
func (s *Store) CleanupOrphaned() (int, error) {
	all, err := s.index.List("")
	if err != nil {
		return 0, &engineerr.PersistenceError{Message: err.Error()}
	}

	removed := 0
	for _, m := range all {
		if _, err := s.keychain.Get(m.ID); err != nil {
			if delErr := s.index.Delete(m.ID); delErr != nil {
				s.logger.WithError(delErr).WithField("secret_id", m.ID).Warn("failed to remove orphaned secret metadata")
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Test performs a kind-specific connectivity probe. For S3-compatible
// kinds it uses the AWS SDK HeadBucket probe (s3probe.go); for every other
// kind the probe is the attachment path itself: the caller is expected to
// run AttachProbe, which a pool can exercise via secretinjector + a
// scratch ATTACH. That indirection keeps this package free of a pool
// dependency.
type AttachProbe func(ctx context.Context, kind Kind, id string, fields map[string]string) error

func (s *Store) Test(ctx context.Context, id string, attach AttachProbe) error {
	bundle, err := s.Get(id)
	if err != nil {
		return err
	}
	defer bundle.Credentials.Zero()

	fields := bundle.Credentials.Fields()

	switch bundle.Metadata.Kind {
	case KindS3, KindR2, KindGCS:
		if err := probeS3Compatible(ctx, bundle.Metadata.Kind, fields); err != nil {
			return &engineerr.ConnectionError{Message: "S3-compatible connectivity probe failed", Context: err.Error()}
		}
		return nil
	default:
		if attach == nil {
			return &engineerr.InvalidOperation{Message: "no attachment probe supplied for this secret kind", Operation: "test_secret"}
		}
		if err := attach(ctx, bundle.Metadata.Kind, bundle.Metadata.ID, fields); err != nil {
			return &engineerr.ConnectionError{Message: "attachment probe failed", Context: err.Error()}
		}
		return nil
	}
}
