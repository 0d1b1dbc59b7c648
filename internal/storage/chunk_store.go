package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ChunkStore persists chunks keyed by (uploadID, index). Writes are
// idempotent: re-submitting an index overwrites with identical bytes.
type ChunkStore interface {
	PutChunk(uploadID string, index int, data []byte) error
	HasChunk(uploadID string, index int) (bool, error)
	ReceivedChunks(uploadID string, totalChunks int) ([]int, error)
	Assemble(uploadID string, totalChunks int, destPath string) error
	Purge(uploadID string) error
}

// FSChunkStore keeps chunks on the local filesystem under one
// directory per upload, named chunk-<index>.
type FSChunkStore struct {
	root string
}

func NewFSChunkStore(root string) *FSChunkStore {
	return &FSChunkStore{root: root}
}

func (s *FSChunkStore) PutChunk(uploadID string, index int, data []byte) error {
	dir := filepath.Join(s.root, uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.chunkPath(uploadID, index), data, 0o644)
}

func (s *FSChunkStore) HasChunk(uploadID string, index int) (bool, error) {
	info, err := os.Stat(s.chunkPath(uploadID, index))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *FSChunkStore) ReceivedChunks(uploadID string, totalChunks int) ([]int, error) {
	var received []int
	for i := 0; i < totalChunks; i++ {
		ok, err := s.HasChunk(uploadID, i)
		if err != nil {
			return nil, err
		}
		if ok {
			received = append(received, i)
		}
	}
	return received, nil
}

// Assemble concatenates chunks 0..totalChunks-1 in index order into
// destPath. Every chunk must be present.
func (s *FSChunkStore) Assemble(uploadID string, totalChunks int, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for i := 0; i < totalChunks; i++ {
		in, err := os.Open(s.chunkPath(uploadID, i))
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	return out.Sync()
}

func (s *FSChunkStore) Purge(uploadID string) error {
	return os.RemoveAll(filepath.Join(s.root, uploadID))
}

func (s *FSChunkStore) chunkPath(uploadID string, index int) string {
	return filepath.Join(s.root, uploadID, fmt.Sprintf("chunk-%d", index))
}
