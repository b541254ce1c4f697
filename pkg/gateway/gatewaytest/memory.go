// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quiz-classroom/pkg/gateway"
)

type account struct {
	uid  string
	hash []byte
}

// Memory keeps the tree as flattened leaves in a map. ReadErr and WriteErr
// let tests simulate an unavailable backend, WriteDelay a slow one.
type Memory struct {
	mu       sync.Mutex
	leaves   map[string]json.RawMessage
	accounts map[string]account
	keys     int
	readErr  error
	writeErr error
	delay    time.Duration
	writes   []string

	feed *gateway.Feed
}

func New() *Memory {
	return &Memory{
		leaves:   make(map[string]json.RawMessage),
		accounts: make(map[string]account),
		feed:     gateway.NewFeed(),
	}
}

func (m *Memory) SetReadErr(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

func (m *Memory) SetWriteErr(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetWriteDelay makes every Write and Merge wait d before it applies.
func (m *Memory) SetWriteDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

func (m *Memory) wait() {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	time.Sleep(d)
}

// Writes returns the paths of successful Write, Merge and Delete calls in
// commit order.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *Memory) Authenticate(_ context.Context, email, password string) (gateway.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	acc, ok := m.accounts[email]
	m.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return gateway.Identity{}, gateway.ErrInvalidCredentials
	}
	return gateway.Identity{UID: acc.uid, Email: email}, nil
}

func (m *Memory) CreateAccount(ctx context.Context, email, password string, profile interface{}) (gateway.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return gateway.Identity{}, err
	}
	m.mu.Lock()
	if _, ok := m.accounts[email]; ok {
		m.mu.Unlock()
		return gateway.Identity{}, gateway.ErrEmailTaken
	}
	uid := m.newKeyLocked()
	m.accounts[email] = account{uid: uid, hash: hash}
	m.mu.Unlock()

	if profile != nil {
		if err := m.Write(ctx, gateway.ProfilePath(uid), profile); err != nil {
			return gateway.Identity{}, err
		}
	}
	return gateway.Identity{UID: uid, Email: email}, nil
}

func (m *Memory) Read(_ context.Context, path string) (gateway.Snapshot, error) {
	path, err := gateway.Clean(path)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return gateway.Snapshot{}, m.readErr
	}
	return m.readLocked(path)
}

func (m *Memory) readLocked(path string) (gateway.Snapshot, error) {
	raw, err := gateway.Assemble(path, m.leaves)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	if raw == nil {
		return gateway.Snapshot{Path: path}, gateway.ErrNotFound
	}
	return gateway.Snapshot{Path: path, Value: raw}, nil
}

func (m *Memory) Write(ctx context.Context, path string, value interface{}) error {
	path, err := gateway.Clean(path)
	if err != nil {
		return err
	}
	leaves, err := gateway.Flatten(path, value)
	if err != nil {
		return err
	}
	m.wait()
	m.mu.Lock()
	if m.writeErr != nil {
		m.mu.Unlock()
		return m.writeErr
	}
	m.replaceLocked(path, leaves)
	m.writes = append(m.writes, path)
	m.mu.Unlock()
	return m.feed.Publish(ctx, path)
}

func (m *Memory) Merge(ctx context.Context, path string, partial map[string]interface{}) error {
	path, err := gateway.Clean(path)
	if err != nil {
		return err
	}
	staged := make(map[string]map[string]json.RawMessage, len(partial))
	for key, value := range partial {
		child, err := gateway.Clean(gateway.Join(path, key))
		if err != nil {
			return err
		}
		leaves, err := gateway.Flatten(child, value)
		if err != nil {
			return err
		}
		staged[child] = leaves
	}
	m.wait()
	m.mu.Lock()
	if m.writeErr != nil {
		m.mu.Unlock()
		return m.writeErr
	}
	for child, leaves := range staged {
		m.replaceLocked(child, leaves)
	}
	m.writes = append(m.writes, path)
	m.mu.Unlock()
	return m.feed.Publish(ctx, path)
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	path, err := gateway.Clean(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.writeErr != nil {
		m.mu.Unlock()
		return m.writeErr
	}
	m.replaceLocked(path, nil)
	m.writes = append(m.writes, path)
	m.mu.Unlock()
	return m.feed.Publish(ctx, path)
}

// replaceLocked drops the subtree at path plus any scalar stored at one of
// its ancestors, then stores leaves.
func (m *Memory) replaceLocked(path string, leaves map[string]json.RawMessage) {
	for p := range m.leaves {
		if p == path || gateway.IsAncestor(path, p) {
			delete(m.leaves, p)
		}
	}
	for _, anc := range gateway.Ancestors(path) {
		delete(m.leaves, anc)
	}
	for p, v := range leaves {
		m.leaves[p] = v
	}
}

func (m *Memory) Subscribe(ctx context.Context, path string) (<-chan gateway.Snapshot, error) {
	path, err := gateway.Clean(path)
	if err != nil {
		return nil, err
	}
	read := func(ctx context.Context) (gateway.Snapshot, error) {
		snap, err := m.Read(ctx, path)
		if err == gateway.ErrNotFound {
			return gateway.Snapshot{Path: path}, nil
		}
		return snap, err
	}
	return gateway.Pump(ctx, path, read, m.feed.Watch(ctx, path)), nil
}

func (m *Memory) NewKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newKeyLocked()
}

func (m *Memory) newKeyLocked() string {
	m.keys++
	return fmt.Sprintf("key%04d", m.keys)
}

var _ gateway.Gateway = (*Memory)(nil)
