package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

const indexSuffix = "_by_original_id"

// BoltStore keeps documents as JSON in a bbolt file. One bucket holds the
// documents by id and a second maps originalId to id.
type BoltStore struct {
	db    *bolt.DB
	docs  []byte
	index []byte
	now   func() time.Time
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path, collection string) (*BoltStore, error) {
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	s := &BoltStore{
		db:    db,
		docs:  []byte(collection),
		index: []byte(collection + indexSuffix),
		now:   func() time.Time { return time.Now().UTC() },
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.docs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(s.index)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return s, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) FindByOriginalID(ctx context.Context, originalID string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	var doc domain.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(s.index).Get([]byte(originalID))
		if id == nil {
			return ErrNotFound
		}
		var err error
		doc, err = s.load(tx, string(id))
		return err
	})
	return doc, err
}

func (s *BoltStore) Create(ctx context.Context, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := s.db.Update(func(tx *bolt.Tx) error {
		doc := resolveTimestamps(data, s.now())
		if err := s.claimOriginalID(tx, doc, id); err != nil {
			return err
		}
		return s.save(tx, id, doc)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *BoltStore) Merge(ctx context.Context, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := s.load(tx, id)
		if err != nil {
			return err
		}
		merged := mergeMaps(existing.Data, resolveTimestamps(data, s.now()))
		if err := s.claimOriginalID(tx, merged, id); err != nil {
			return err
		}
		return s.save(tx, id, merged)
	})
}

func (s *BoltStore) Get(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	var doc domain.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		doc, err = s.load(tx, id)
		return err
	})
	return doc, err
}

// Scan reads the matching documents first and calls fn outside the read
// transaction, so fn may write to the store.
func (s *BoltStore) Scan(ctx context.Context, opts ScanOptions, fn func(domain.Document) error) error {
	var docs []domain.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.docs).ForEach(func(k, v []byte) error {
			doc, err := decodeDocument(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.docs, err)
	}

	if opts.OrderBy != "" {
		sortDocuments(docs, opts.OrderBy, opts.Descending)
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) Update(ctx context.Context, id string, updates map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.applyUpdate(tx, id, updates)
	})
}

func (s *BoltStore) NewBatch() Batch {
	return &boltBatch{store: s}
}

func (s *BoltStore) applyUpdate(tx *bolt.Tx, id string, updates map[string]any) error {
	doc, err := s.load(tx, id)
	if err != nil {
		return err
	}
	now := s.now()
	for path, v := range updates {
		if domain.IsServerTimestamp(v) {
			v = now
		}
		setPath(doc.Data, path, v)
	}
	if err := s.claimOriginalID(tx, doc.Data, id); err != nil {
		return err
	}
	return s.save(tx, id, doc.Data)
}

// claimOriginalID points the index at id, refusing ids owned by another document.
func (s *BoltStore) claimOriginalID(tx *bolt.Tx, data map[string]any, id string) error {
	originalID, _ := data[domain.FieldOriginalID].(string)
	if originalID == "" {
		return nil
	}
	idx := tx.Bucket(s.index)
	if owner := idx.Get([]byte(originalID)); owner != nil && string(owner) != id {
		return fmt.Errorf("%w: %s", ErrDuplicateOriginalID, originalID)
	}
	if prev, err := s.load(tx, id); err == nil {
		if old, _ := prev.Data[domain.FieldOriginalID].(string); old != "" && old != originalID {
			if err := idx.Delete([]byte(old)); err != nil {
				return err
			}
		}
	}
	return idx.Put([]byte(originalID), []byte(id))
}

func (s *BoltStore) load(tx *bolt.Tx, id string) (domain.Document, error) {
	raw := tx.Bucket(s.docs).Get([]byte(id))
	if raw == nil {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decodeDocument(id, raw)
}

func (s *BoltStore) save(tx *bolt.Tx, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	return tx.Bucket(s.docs).Put([]byte(id), raw)
}

func decodeDocument(id string, raw []byte) (domain.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return domain.Document{ID: id, Data: data}, nil
}

type pendingUpdate struct {
	id      string
	updates map[string]any
}

type boltBatch struct {
	store *BoltStore
	ops   []pendingUpdate
}

func (b *boltBatch) Update(id string, updates map[string]any) {
	b.ops = append(b.ops, pendingUpdate{id: id, updates: updates})
}

func (b *boltBatch) Len() int { return len(b.ops) }

// Commit applies every queued update in one transaction; any failure rolls
// the whole batch back.
func (b *boltBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		for _, op := range b.ops {
			if err := b.store.applyUpdate(tx, op.id, op.updates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(b.ops), err)
	}
	b.ops = nil
	return nil
}
