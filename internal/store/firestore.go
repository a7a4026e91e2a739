package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

// scanPageSize is the number of documents Scan reads per query.
const scanPageSize = 300

// FirestoreStore keeps articles in a Cloud Firestore collection.
type FirestoreStore struct {
	client   *firestore.Client
	col      *firestore.CollectionRef
	pageSize int
}

// OpenFirestore connects to projectID. credentialsFile may be empty to use
// application default credentials or FIRESTORE_EMULATOR_HOST.
func OpenFirestore(ctx context.Context, projectID, collection, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, col: client.Collection(collection), pageSize: scanPageSize}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) FindByOriginalID(ctx context.Context, originalID string) (domain.Document, error) {
	snaps, err := s.col.Where(domain.FieldOriginalID, "==", originalID).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return domain.Document{}, fmt.Errorf("query originalId %s: %w", originalID, err)
	}
	if len(snaps) == 0 {
		return domain.Document{}, fmt.Errorf("%w: originalId %s", ErrNotFound, originalID)
	}
	return snapshotDocument(snaps[0]), nil
}

func (s *FirestoreStore) Create(ctx context.Context, data map[string]any) (string, error) {
	ref, _, err := s.col.Add(ctx, toFirestore(data))
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Merge(ctx context.Context, id string, data map[string]any) error {
	if _, err := s.col.Doc(id).Set(ctx, toFirestore(data), firestore.MergeAll); err != nil {
		return fmt.Errorf("merge document %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (domain.Document, error) {
	snap, err := s.col.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return snapshotDocument(snap), nil
}

// Scan reads one page at a time and calls fn only after the page query has
// finished, so fn may commit writes without a query held open.
func (s *FirestoreStore) Scan(ctx context.Context, opts ScanOptions, fn func(domain.Document) error) error {
	q := s.col.Query
	if opts.OrderBy != "" {
		dir := firestore.Asc
		if opts.Descending {
			dir = firestore.Desc
		}
		q = q.OrderBy(opts.OrderBy, dir)
	} else {
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
	}

	var last *firestore.DocumentSnapshot
	seen := 0
	for {
		size := s.pageSize
		if opts.Limit > 0 {
			size = min(size, opts.Limit-seen)
		}
		page := q.Limit(size)
		if last != nil {
			page = page.StartAfter(last)
		}
		snaps, err := page.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("scan %s: %w", s.col.ID, err)
		}
		for _, snap := range snaps {
			if err := fn(snapshotDocument(snap)); err != nil {
				return err
			}
		}
		seen += len(snaps)
		if len(snaps) < size || (opts.Limit > 0 && seen >= opts.Limit) {
			return nil
		}
		last = snaps[len(snaps)-1]
	}
}

func (s *FirestoreStore) Update(ctx context.Context, id string, updates map[string]any) error {
	if _, err := s.col.Doc(id).Update(ctx, toUpdates(updates)); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("update document %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) NewBatch() Batch {
	return &firestoreBatch{store: s}
}

type firestoreBatch struct {
	store *FirestoreStore
	ops   []pendingUpdate
}

func (b *firestoreBatch) Update(id string, updates map[string]any) {
	b.ops = append(b.ops, pendingUpdate{id: id, updates: updates})
}

func (b *firestoreBatch) Len() int { return len(b.ops) }

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	wb := b.store.client.Batch()
	for _, op := range b.ops {
		wb.Update(b.store.col.Doc(op.id), toUpdates(op.updates))
	}
	if _, err := wb.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(b.ops), err)
	}
	b.ops = nil
	return nil
}

func snapshotDocument(snap *firestore.DocumentSnapshot) domain.Document {
	return domain.Document{ID: snap.Ref.ID, Data: snap.Data()}
}

// toFirestore swaps ServerTimestamp sentinels for Firestore's own.
func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = firestoreValue(v)
	}
	return out
}

func firestoreValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return toFirestore(m)
	}
	if domain.IsServerTimestamp(v) {
		return firestore.ServerTimestamp
	}
	return v
}

func toUpdates(updates map[string]any) []firestore.Update {
	out := make([]firestore.Update, 0, len(updates))
	for path, v := range updates {
		out = append(out, firestore.Update{Path: path, Value: firestoreValue(v)})
	}
	return out
}
