package secretstore

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

// Keychain is the capability interface the secret store is polymorphic
// over. It has two implementations: a real OS-native binding, and a
// degraded stand-in used when the native keychain fails to initialize.
type Keychain interface {
	Set(id string, bundle CredentialBundle) error
	Get(id string) (CredentialBundle, error)
	Delete(id string) error
}

const keychainService = "pondpilot-secrets"

// NativeKeychain binds to the OS keychain (macOS Keychain, Windows
// Credential Manager, Linux Secret Service) via zalando/go-keyring.
type NativeKeychain struct{}

func NewNativeKeychain() *NativeKeychain { return &NativeKeychain{} }

func (k *NativeKeychain) Set(id string, bundle CredentialBundle) error {
	payload, err := json.Marshal(bundle.Fields())
	if err != nil {
		return errors.Wrap(err, "marshal credential bundle")
	}
	defer zero(payload)

	if err := keyring.Set(keychainService, id, string(payload)); err != nil {
		return errors.Wrap(err, "write secret to OS keychain")
	}
	return nil
}

func (k *NativeKeychain) Get(id string) (CredentialBundle, error) {
	payload, err := keyring.Get(keychainService, id)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, &secretNotFoundError{id: id}
		}
		return nil, errors.Wrap(err, "read secret from OS keychain")
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, errors.Wrap(err, "unmarshal credential bundle")
	}
	return bundleFromFields(fields), nil
}

func (k *NativeKeychain) Delete(id string) error {
	if err := keyring.Delete(keychainService, id); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "delete secret from OS keychain")
	}
	return nil
}

// DegradedKeychain reports "secrets unavailable" uniformly. It is wired in
// when NativeKeychain fails an initial self-check, so the rest of the
// engine can keep running with secret-backed features simply unavailable
// instead of crashing at start-up.
type DegradedKeychain struct {
	Reason string
}

func NewDegradedKeychain(reason string) *DegradedKeychain {
	return &DegradedKeychain{Reason: reason}
}

func (k *DegradedKeychain) unavailable() error {
	msg := "secrets unavailable"
	if k.Reason != "" {
		msg += ": " + k.Reason
	}
	return errors.New(msg)
}

func (k *DegradedKeychain) Set(id string, bundle CredentialBundle) error { return k.unavailable() }
func (k *DegradedKeychain) Get(id string) (CredentialBundle, error)     { return nil, k.unavailable() }
func (k *DegradedKeychain) Delete(id string) error                      { return k.unavailable() }

// selfCheckKey is written and immediately deleted to probe whether the OS
// keychain backend is actually reachable (some Linux desktops have no
// Secret Service running, which go-keyring only reports on first use).
const selfCheckKey = "__pondpilot_selfcheck__"

// NewKeychain returns a NativeKeychain if a round-trip self-check
// succeeds, otherwise a DegradedKeychain carrying the failure reason.
func NewKeychain(logger *logrus.Entry) Keychain {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	native := NewNativeKeychain()
	probe := bundleFromFields(map[string]string{"probe": "1"})
	if err := native.Set(selfCheckKey, probe); err != nil {
		logger.WithError(err).Warn("OS keychain self-check failed, falling back to degraded keychain")
		return NewDegradedKeychain(err.Error())
	}
	_ = native.Delete(selfCheckKey)
	return native
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

type secretNotFoundError struct{ id string }

func (e *secretNotFoundError) Error() string { return "secret not found: " + e.id }
func (e *secretNotFoundError) NotFoundID() string { return e.id }
