// Package gateway defines the contract of the hosted key-tree database and
// account service every store talks to, plus the path layout and the JSON
// tree codec shared by its implementations.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("gateway: path not found")
	ErrInvalidCredentials = errors.New("gateway: invalid email or password")
	ErrEmailTaken         = errors.New("gateway: email already registered")
	ErrInvalidPath        = errors.New("gateway: invalid path")
)

// Identity is an authenticated account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Snapshot is the full JSON value found at Path. A missing path has a nil
// Value.
type Snapshot struct {
	Path  string
	Value json.RawMessage
}

func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot into dst. It fails with ErrNotFound when the
// path holds no value.
func (s Snapshot) Decode(dst interface{}) error {
	if !s.Exists() {
		return ErrNotFound
	}
	return errors.Wrapf(json.Unmarshal(s.Value, dst), "decode %s", s.Path)
}

// Children returns the raw child values keyed by child key. A missing path or
// a scalar yields an empty map.
func (s Snapshot) Children() map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if !s.Exists() {
		return out
	}
	if err := json.Unmarshal(s.Value, &out); err != nil {
		var list []json.RawMessage
		if json.Unmarshal(s.Value, &list) == nil {
			for i, v := range list {
				out[itoa(i)] = v
			}
		}
	}
	return out
}

// Gateway is the persistence and identity backend.
type Gateway interface {
	Authenticate(ctx context.Context, email, password string) (Identity, error)
	// CreateAccount registers email and stores profile at the new
	// account's profile path.
	CreateAccount(ctx context.Context, email, password string, profile interface{}) (Identity, error)

	// Read returns the value at path or ErrNotFound.
	Read(ctx context.Context, path string) (Snapshot, error)
	// Write replaces the value at path.
	Write(ctx context.Context, path string, value interface{}) error
	// Merge writes each key of partial below path, leaving other children.
	Merge(ctx context.Context, path string, partial map[string]interface{}) error
	Delete(ctx context.Context, path string) error

	// Subscribe emits the value at path now and after every change that
	// touches it. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)

	// NewKey returns a fresh unique key for push-style inserts.
	NewKey() string
}
