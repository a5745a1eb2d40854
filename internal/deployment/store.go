package deployment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"sigs.k8s.io/yaml"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a deployment.
var ErrSnapshotNotFound = errors.New("deployment snapshot not found")

// Store loads and replaces snapshots. A snapshot is always read and written
// whole.
type Store interface {
	Load(ctx context.Context, name string) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// ObjectStore is the subset of the object store the snapshot store needs.
// A missing object must be reported with an error matching fs.ErrNotExist.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Store keeps snapshots as YAML documents in an object store bucket.
type S3Store struct {
	Objects ObjectStore
	Bucket  string
}

// NewS3Store creates a snapshot store over the given bucket.
func NewS3Store(objects ObjectStore, bucket string) *S3Store {
	return &S3Store{Objects: objects, Bucket: bucket}
}

// SnapshotKey returns the object key holding a deployment's snapshot.
func SnapshotKey(name string) string {
	return path.Join("testnet-deploy", name, "snapshot.yaml")
}

// Load fetches and decodes the snapshot for name.
func (s *S3Store) Load(ctx context.Context, name string) (*Snapshot, error) {
	data, err := s.Objects.GetObject(ctx, s.Bucket, SnapshotKey(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", name, err)
	}
	return DecodeSnapshot(data)
}

// Save encodes and replaces the snapshot.
func (s *S3Store) Save(ctx context.Context, snapshot *Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := s.Objects.PutObject(ctx, s.Bucket, SnapshotKey(snapshot.Name), data); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snapshot.Name, err)
	}
	return nil
}

// EncodeSnapshot renders a snapshot as YAML.
func EncodeSnapshot(snapshot *Snapshot) ([]byte, error) {
	if snapshot == nil || snapshot.Name == "" {
		return nil, fmt.Errorf("snapshot must have a deployment name")
	}
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a YAML snapshot document.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := yaml.UnmarshalStrict(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Name == "" {
		return nil, fmt.Errorf("failed to decode snapshot: missing name")
	}
	return &snapshot, nil
}
