package firestore

import (
	"context"
	"fmt"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quipper/poc/sis/be/pkg/docstore"
)

// FirestoreStore maps the docstore contract onto Cloud Firestore.
// Sentinels translate to their native Firestore transforms.
type FirestoreStore struct {
	client *gfs.Client
}

var _ docstore.Store = (*FirestoreStore)(nil)

// NewFirestoreStore connects to projectID. credentialsFile may be empty to use
// application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gfs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Collection(name string) docstore.Collection {
	return &collection{ref: s.client.Collection(name)}
}

// Ping performs a cheap read; a missing document still proves connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("_health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *FirestoreStore) Close() error { return s.client.Close() }

type collection struct {
	ref *gfs.CollectionRef
}

func (c *collection) NewID() string { return c.ref.NewDoc().ID }

func (c *collection) Get(ctx context.Context, id string) (*docstore.Snapshot, error) {
	snap, err := c.ref.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &docstore.Snapshot{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (c *collection) Set(ctx context.Context, id string, data map[string]any) error {
	native := make(map[string]any, len(data))
	for k, v := range data {
		native[k] = translate(v)
	}
	_, err := c.ref.Doc(id).Set(ctx, native)
	return err
}

func (c *collection) Update(ctx context.Context, id string, updates []docstore.Update) error {
	native := make([]gfs.Update, 0, len(updates))
	for _, u := range updates {
		native = append(native, gfs.Update{Path: u.Path, Value: translate(u.Value)})
	}
	_, err := c.ref.Doc(id).Update(ctx, native)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, c.ref.ID, id)
	}
	return err
}

func (c *collection) Delete(ctx context.Context, id string) error {
	_, err := c.ref.Doc(id).Delete(ctx)
	return err
}

func (c *collection) All(ctx context.Context) ([]*docstore.Snapshot, error) {
	return collect(c.ref.Documents(ctx))
}

func (c *collection) Where(ctx context.Context, f docstore.Filter) ([]*docstore.Snapshot, error) {
	switch f.Op {
	case docstore.OpEqual, docstore.OpArrayContains:
	default:
		return nil, fmt.Errorf("firestore docstore: unsupported operator %q", f.Op)
	}
	return collect(c.ref.Where(f.Field, string(f.Op), f.Value).Documents(ctx))
}

func collect(it *gfs.DocumentIterator) ([]*docstore.Snapshot, error) {
	docs, err := it.GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*docstore.Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, &docstore.Snapshot{ID: d.Ref.ID, Data: d.Data()})
	}
	return out, nil
}

func translate(v any) any {
	switch op := v.(type) {
	case docstore.ArrayUnionOp:
		return gfs.ArrayUnion(op.Elems...)
	case docstore.ArrayRemoveOp:
		return gfs.ArrayRemove(op.Elems...)
	}
	if docstore.IsServerTimestamp(v) {
		return gfs.ServerTimestamp
	}
	return v
}
