package database

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quiz-classroom/pkg/gateway"
)

// Node is one leaf of the key tree.
type Node struct {
	Path      string         `gorm:"primaryKey;size:512"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (Node) TableName() string { return "tree_nodes" }

type Account struct {
	UID          string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

// Tree is the gorm-backed gateway. Committed changes are announced on feed.
type Tree struct {
	db   *gorm.DB
	feed gateway.ChangeFeed
}

func NewTree(db *gorm.DB, feed gateway.ChangeFeed) *Tree {
	return &Tree{db: db, feed: feed}
}

func (t *Tree) Authenticate(ctx context.Context, email, password string) (gateway.Identity, error) {
	email = normalizeEmail(email)
	var acc Account
	err := t.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gateway.Identity{}, gateway.ErrInvalidCredentials
	}
	if err != nil {
		return gateway.Identity{}, errors.Wrap(err, "load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return gateway.Identity{}, gateway.ErrInvalidCredentials
	}
	return gateway.Identity{UID: acc.UID, Email: acc.Email}, nil
}

func (t *Tree) CreateAccount(ctx context.Context, email, password string, profile interface{}) (gateway.Identity, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return gateway.Identity{}, errors.Wrap(err, "hash password")
	}
	acc := Account{UID: t.NewKey(), Email: email, PasswordHash: string(hash)}

	var leaves map[string]json.RawMessage
	profilePath := gateway.ProfilePath(acc.UID)
	if profile != nil {
		if leaves, err = gateway.Flatten(profilePath, profile); err != nil {
			return gateway.Identity{}, err
		}
	}

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gateway.ErrEmailTaken
		}
		if err := tx.Create(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return gateway.ErrEmailTaken
			}
			return err
		}
		return replace(tx, profilePath, leaves)
	})
	if err != nil {
		if errors.Is(err, gateway.ErrEmailTaken) {
			return gateway.Identity{}, gateway.ErrEmailTaken
		}
		return gateway.Identity{}, errors.Wrap(err, "create account")
	}
	t.publish(ctx, profilePath)
	return gateway.Identity{UID: acc.UID, Email: acc.Email}, nil
}

func (t *Tree) Read(ctx context.Context, path string) (gateway.Snapshot, error) {
	path, err := gateway.Clean(path)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	var nodes []Node
	err = subtree(t.db.WithContext(ctx), path).Find(&nodes).Error
	if err != nil {
		return gateway.Snapshot{}, errors.Wrapf(err, "read %s", path)
	}
	leaves := make(map[string]json.RawMessage, len(nodes))
	for _, n := range nodes {
		leaves[n.Path] = json.RawMessage(n.Value)
	}
	raw, err := gateway.Assemble(path, leaves)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	if raw == nil {
		return gateway.Snapshot{Path: path}, gateway.ErrNotFound
	}
	return gateway.Snapshot{Path: path, Value: raw}, nil
}

func (t *Tree) Write(ctx context.Context, path string, value interface{}) error {
	path, err := gateway.Clean(path)
	if err != nil {
		return err
	}
	leaves, err := gateway.Flatten(path, value)
	if err != nil {
		return err
	}
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replace(tx, path, leaves)
	})
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	t.publish(ctx, path)
	return nil
}

func (t *Tree) Merge(ctx context.Context, path string, partial map[string]interface{}) error {
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
		if staged[child], err = gateway.Flatten(child, value); err != nil {
			return err
		}
	}
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for child, leaves := range staged {
			if err := replace(tx, child, leaves); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "merge %s", path)
	}
	t.publish(ctx, path)
	return nil
}

func (t *Tree) Delete(ctx context.Context, path string) error {
	path, err := gateway.Clean(path)
	if err != nil {
		return err
	}
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replace(tx, path, nil)
	})
	if err != nil {
		return errors.Wrapf(err, "delete %s", path)
	}
	t.publish(ctx, path)
	return nil
}

func (t *Tree) Subscribe(ctx context.Context, path string) (<-chan gateway.Snapshot, error) {
	path, err := gateway.Clean(path)
	if err != nil {
		return nil, err
	}
	read := func(ctx context.Context) (gateway.Snapshot, error) {
		snap, err := t.Read(ctx, path)
		if errors.Is(err, gateway.ErrNotFound) {
			return gateway.Snapshot{Path: path}, nil
		}
		return snap, err
	}
	return gateway.Pump(ctx, path, read, t.feed.Watch(ctx, path)), nil
}

func (t *Tree) NewKey() string {
	return uuid.NewString()
}

func (t *Tree) publish(ctx context.Context, path string) {
	if err := t.feed.Publish(ctx, path); err != nil {
		log.Printf("database: publish change %s: %v", path, err)
	}
}

// replace removes the subtree at path and any scalar stored at an ancestor,
// then inserts leaves.
func replace(tx *gorm.DB, path string, leaves map[string]json.RawMessage) error {
	if err := subtree(tx, path).Delete(&Node{}).Error; err != nil {
		return err
	}
	if anc := gateway.Ancestors(path); len(anc) > 0 {
		if err := tx.Where("path IN ?", anc).Delete(&Node{}).Error; err != nil {
			return err
		}
	}
	if len(leaves) == 0 {
		return nil
	}
	now := time.Now()
	nodes := make([]Node, 0, len(leaves))
	for p, v := range leaves {
		nodes = append(nodes, Node{Path: p, Value: datatypes.JSON(v), UpdatedAt: now})
	}
	return tx.CreateInBatches(nodes, 200).Error
}

func subtree(db *gorm.DB, path string) *gorm.DB {
	return db.Where("path = ? OR path LIKE ? ESCAPE '!'", path, likeEscape(path)+"/%")
}

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likeEscape(s string) string { return likeReplacer.Replace(s) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ gateway.Gateway = (*Tree)(nil)
