// Package lode persists artifacts a run's units register — decoded
// files, extracted binaries, anything too large or too binary to log
// inline — to a flat, content-addressed-by-name layout on top of the
// Lode storage SDK. A batch event pipeline would partition typed
// events into Lode's Hive-partitioned Dataset machinery; an evaluation
// run has no event stream to partition, just a tree of derived files,
// so this package talks to lode.Store directly and skips Dataset
// entirely.
package lode

import (
	"bytes"
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ArtifactStore writes artifact payloads under a run-scoped prefix.
type ArtifactStore struct {
	store  lode.Store
	prefix string
}

// NewArtifactStore builds a store from any lode.StoreFactory. prefix is
// prepended to every path passed to Put, typically the run ID.
func NewArtifactStore(factory lode.StoreFactory, prefix string) (*ArtifactStore, error) {
	store, err := factory()
	if err != nil {
		return nil, WrapInitError(err, prefix)
	}
	return &ArtifactStore{store: store, prefix: prefix}, nil
}

// NewFSArtifactStore stores artifacts under root on the local filesystem.
func NewFSArtifactStore(root, prefix string) (*ArtifactStore, error) {
	return NewArtifactStore(lode.NewFSFactory(root), prefix)
}

// Put writes data at relPath beneath the store's prefix.
func (s *ArtifactStore) Put(ctx context.Context, relPath string, data []byte) error {
	path := s.buildPath(relPath)
	if err := s.store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (s *ArtifactStore) buildPath(relPath string) string {
	if s.prefix == "" {
		return relPath
	}
	return fmt.Sprintf("%s/%s", s.prefix, relPath)
}
