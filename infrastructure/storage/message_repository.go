package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const maxConflictRetries = 3

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// EncodeKeyPart makes an identity id safe to embed between ':' separators.
// Ids are opaque and may contain ':' themselves, the URL-safe base64 alphabet cannot.
func EncodeKeyPart(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeKeyPart reverses EncodeKeyPart.
func DecodeKeyPart(part string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(part)
	return string(raw), err
}

// conversationPrefix lists every message sent by senderID to receiverID.
func conversationPrefix(senderID, receiverID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:", EncodeKeyPart(senderID), EncodeKeyPart(receiverID)))
}

// messageKey is formatted as "msg:{sender}:{receiver}:{timestamp_padded}:{uuid}" so that
// a prefix scan of one direction of a conversation is naturally sorted by time.
// Sender and receiver are encoded with EncodeKeyPart.
// The UUID separates two messages written at the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:%019d:%s",
		EncodeKeyPart(m.SenderID), EncodeKeyPart(m.ReceiverID), m.CreatedAt.UnixNano(), m.ID))
}

// messageIndexKey points from a message id to its primary key.
func messageIndexKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func (r *MessageRepository) StoreMessage(_ context.Context, message domain.Message) error {
	data, err := marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := messageKey(message)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(message.ID), key)
	})
}

// MarkSeen flips every unseen senderID→receiverID message in one transaction.
// A concurrent writer touching the same records makes the transaction retry.
func (r *MessageRepository) MarkSeen(ctx context.Context, senderID, receiverID string) (int, error) {
	var updated int
	err := r.updateWithRetry(ctx, func(txn *badger.Txn) error {
		updated = 0
		prefix := conversationPrefix(senderID, receiverID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		type pending struct {
			key  []byte
			data []byte
		}
		var writes []pending
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var d diskMessage
			if err := item.Value(func(val []byte) error { return unmarshal(val, &d) }); err != nil {
				return err
			}
			if d.Seen {
				continue
			}
			d.Seen = true
			data, err := marshal(d)
			if err != nil {
				return err
			}
			writes = append(writes, pending{key: item.KeyCopy(nil), data: data})
		}
		for _, w := range writes {
			if err := txn.Set(w.key, w.data); err != nil {
				return err
			}
		}
		updated = len(writes)
		return nil
	})
	return updated, err
}

// MarkOneSeen flips a single message, only when receiverID is its receiver.
func (r *MessageRepository) MarkOneSeen(ctx context.Context, id uuid.UUID, receiverID string) (domain.Message, error) {
	var message domain.Message
	err := r.updateWithRetry(ctx, func(txn *badger.Txn) error {
		key, d, err := r.getByID(txn, id)
		if err != nil {
			return err
		}
		if d.ReceiverID != receiverID {
			return errors.ErrMessageNotFound
		}
		if !d.Seen {
			d.Seen = true
			data, err := marshal(d)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		message, err = toMessage(d)
		return err
	})
	return message, err
}

func (r *MessageRepository) CountUnseen(_ context.Context, senderID, receiverID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return scanMessages(txn, conversationPrefix(senderID, receiverID), func(d diskMessage) {
			if !d.Seen {
				count++
			}
		})
	})
	return count, err
}

// GetConversation returns both directions of the conversation between a and b, oldest first.
func (r *MessageRepository) GetConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	var records []diskMessage
	collect := func(d diskMessage) { records = append(records, d) }
	err := r.db.View(func(txn *badger.Txn) error {
		if err := scanMessages(txn, conversationPrefix(a, b), collect); err != nil {
			return err
		}
		if a == b {
			return nil
		}
		return scanMessages(txn, conversationPrefix(b, a), collect)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt < records[j].CreatedAt })
	messages := make([]domain.Message, 0, len(records))
	for _, d := range records {
		m, err := toMessage(d)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *MessageRepository) getByID(txn *badger.Txn, id uuid.UUID) ([]byte, diskMessage, error) {
	var d diskMessage
	idx, err := txn.Get(messageIndexKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, d, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, d, err
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, d, err
	}
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, d, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, d, err
	}
	err = item.Value(func(val []byte) error { return unmarshal(val, &d) })
	return key, d, err
}

func (r *MessageRepository) updateWithRetry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = r.db.Update(fn); !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func scanMessages(txn *badger.Txn, prefix []byte, fn func(diskMessage)) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var d diskMessage
		if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &d) }); err != nil {
			return err
		}
		fn(d)
	}
	return nil
}
