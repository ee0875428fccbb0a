// This file implements the JSON file layer that is the source of truth for
// the store: one JSON array per (partition, type) plus the metadata record.
//
// Layout under the data root:
//
//	srd/official/{monsters,races,classes,spells,items,backgrounds}.json
//	srd/official/metadata.json
//	srd/custom/{monsters,races,classes,spells,items,backgrounds}.json
package sqlite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/pkg/types"
)

const (
	srdDirName       = "srd"
	metadataFileName = "metadata.json"
)

// PartitionDir returns the directory holding the files of partition s.
func PartitionDir(root string, s types.Source) string {
	return filepath.Join(root, srdDirName, string(s))
}

// EntriesPath returns the JSON file for type t in partition s.
func EntriesPath(root string, s types.Source, t types.EntryType) string {
	return filepath.Join(PartitionDir(root, s), string(t)+".json")
}

// MetadataPath returns the metadata file path.
func MetadataPath(root string) string {
	return filepath.Join(PartitionDir(root, types.SourceOfficial), metadataFileName)
}

// EnsureLayout creates both partition directories.
func EnsureLayout(root string) error {
	for _, s := range types.Sources {
		if err := os.MkdirAll(PartitionDir(root, s), 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", s, err)
		}
	}
	return nil
}

// Load reads all twelve entry files plus the metadata record. A missing file
// yields an empty collection. Unreadable or malformed files are logged and
// treated as empty, so Load always returns a fully populated Database.
func Load(root string, logger *zap.Logger) *types.Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := types.NewDatabase()
	for _, s := range types.Sources {
		p := db.Partition(s)
		for _, t := range types.AllEntryTypes {
			p[t] = loadEntries(EntriesPath(root, s, t), s, t, logger)
		}
	}
	db.Metadata = loadMetadata(MetadataPath(root), logger)
	return db
}

// loadEntries reads one entry file. Elements that do not decode are skipped.
// Entries without a source are stamped with the partition they were read
// from.
func loadEntries(path string, s types.Source, t types.EntryType, logger *zap.Logger) []types.Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read entry file", zap.String("path", path), zap.Error(err))
		}
		return []types.Entry{}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		logger.Warn("malformed entry file", zap.String("path", path), zap.Error(err))
		return []types.Entry{}
	}

	entries := make([]types.Entry, 0, len(raws))
	for i, raw := range raws {
		e, err := types.DecodeEntry(t, raw)
		if err != nil {
			logger.Warn("skipping malformed entry",
				zap.String("path", path), zap.Int("index", i), zap.Error(err))
			continue
		}
		if e.Header().Source == "" {
			e.Header().Source = s
		}
		entries = append(entries, e)
	}
	return entries
}

// loadMetadata reads the metadata record, defaulting to a never-synced record.
func loadMetadata(path string, logger *zap.Logger) types.Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read metadata", zap.String("path", path), zap.Error(err))
		}
		return types.NewMetadata()
	}
	var m types.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warn("malformed metadata", zap.String("path", path), zap.Error(err))
		return types.NewMetadata()
	}
	return m.Clone()
}

// Save writes both partitions and the metadata record.
func Save(root string, db *types.Database) error {
	for _, s := range types.Sources {
		if err := SavePartition(root, s, db.Partition(s)); err != nil {
			return err
		}
	}
	return SaveMetadata(root, db.Metadata)
}

// SavePartition overwrites the six entry files of partition s.
func SavePartition(root string, s types.Source, p types.Partition) error {
	if err := EnsureLayout(root); err != nil {
		return err
	}
	for _, t := range types.AllEntryTypes {
		if err := writeEntries(EntriesPath(root, s, t), p[t]); err != nil {
			return err
		}
	}
	return nil
}

// SaveMetadata overwrites the metadata record.
func SaveMetadata(root string, m types.Metadata) error {
	if err := EnsureLayout(root); err != nil {
		return err
	}
	data, err := marshalFile(m.Clone())
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeFileAtomic(MetadataPath(root), data)
}

// writeEntries encodes entries as a JSON array and writes it atomically.
func writeEntries(path string, entries []types.Entry) error {
	if entries == nil {
		entries = []types.Entry{}
	}
	data, err := marshalFile(entries)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// marshalFile renders v as indented JSON with a trailing newline.
func marshalFile(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data using the temp-file, fsync, rename pattern so
// readers see either the old file or the new one.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tome-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
