package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	userPrefix   = "user:"
	userIDPrefix = "userid:"
)

// UserRepository stores identities under "user:{email}", with "userid:{id}" pointing back to the email.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists a new identity and returns its generated id.
func (u *UserRepository) CreateUser(_ context.Context, identity domain.Identity) (string, error) {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{"user"}
	}
	data, err := marshal(fromIdentity(identity))
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := []byte(userPrefix + identity.Email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(userIDPrefix+identity.ID), []byte(identity.Email))
	})
	if err != nil {
		return "", err
	}
	return identity.ID, nil
}

func (u *UserRepository) GetUserByEmail(_ context.Context, email string) (domain.Identity, error) {
	var identity domain.Identity
	err := u.db.View(func(txn *badger.Txn) error {
		d, err := getUser(txn, email)
		identity = toIdentity(d)
		return err
	})
	return identity, err
}

func (u *UserRepository) GetUser(_ context.Context, id string) (domain.Identity, error) {
	var identity domain.Identity
	err := u.db.View(func(txn *badger.Txn) error {
		email, err := emailOf(txn, id)
		if err != nil {
			return err
		}
		d, err := getUser(txn, email)
		identity = toIdentity(d)
		return err
	})
	return identity, err
}

// ListUsers returns every identity ordered by full name.
func (u *UserRepository) ListUsers(_ context.Context) ([]domain.Identity, error) {
	var identities []domain.Identity
	err := u.db.View(func(txn *badger.Txn) error {
		return scanUsers(txn, func(_ []byte, d diskUser) error {
			identities = append(identities, toIdentity(d))
			return nil
		})
	})
	sort.SliceStable(identities, func(i, j int) bool { return identities[i].FullName < identities[j].FullName })
	return identities, err
}

func (u *UserRepository) UpdateProfile(_ context.Context, id string, profile domain.Profile) (domain.Identity, error) {
	var identity domain.Identity
	err := u.db.Update(func(txn *badger.Txn) error {
		email, err := emailOf(txn, id)
		if err != nil {
			return err
		}
		d, err := getUser(txn, email)
		if err != nil {
			return err
		}
		d.FullName = profile.FullName
		d.Bio = profile.Bio
		d.ProfileImage = profile.ProfileImage
		data, err := marshal(d)
		if err != nil {
			return err
		}
		identity = toIdentity(d)
		return txn.Set([]byte(userPrefix+email), data)
	})
	return identity, err
}

func (u *UserRepository) SetOnline(_ context.Context, id string, online bool) error {
	return u.db.Update(func(txn *badger.Txn) error {
		email, err := emailOf(txn, id)
		if err != nil {
			return err
		}
		d, err := getUser(txn, email)
		if err != nil {
			return err
		}
		if d.IsOnline == online {
			return nil
		}
		d.IsOnline = online
		data, err := marshal(d)
		if err != nil {
			return err
		}
		return txn.Set([]byte(userPrefix+email), data)
	})
}

// ResetPresence marks every identity offline. It runs at startup, when no connection can be live yet.
func (u *UserRepository) ResetPresence(_ context.Context) (int, error) {
	reset := 0
	err := u.db.Update(func(txn *badger.Txn) error {
		type pending struct {
			key  []byte
			data []byte
		}
		var writes []pending
		err := scanUsers(txn, func(key []byte, d diskUser) error {
			if !d.IsOnline {
				return nil
			}
			d.IsOnline = false
			data, err := marshal(d)
			if err != nil {
				return err
			}
			writes = append(writes, pending{key: key, data: data})
			return nil
		})
		if err != nil {
			return err
		}
		for _, w := range writes {
			if err := txn.Set(w.key, w.data); err != nil {
				return err
			}
		}
		reset = len(writes)
		return nil
	})
	return reset, err
}

func emailOf(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get([]byte(userIDPrefix + id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return "", errors.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	email, err := item.ValueCopy(nil)
	return string(email), err
}

func getUser(txn *badger.Txn, email string) (diskUser, error) {
	var d diskUser
	item, err := txn.Get([]byte(userPrefix + email))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return d, errors.ErrUserNotFound
	}
	if err != nil {
		return d, err
	}
	err = item.Value(func(val []byte) error { return unmarshal(val, &d) })
	return d, err
}

func scanUsers(txn *badger.Txn, fn func(key []byte, d diskUser) error) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(userPrefix), PrefetchValues: true, PrefetchSize: 100})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var d diskUser
		if err := item.Value(func(val []byte) error { return unmarshal(val, &d) }); err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), d); err != nil {
			return err
		}
	}
	return nil
}
