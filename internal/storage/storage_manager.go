/**
 * Storage Manager
 *
 * Finalizes a run: the JSON document always, the archive when configured.
 * The archive is written, the document is staged next to its destination,
 * the archive commits, and only then does the document replace whatever was
 * at the destination. A
 * failure at any step leaves earlier output untouched and no archived run
 * without a document.
 */

package storage

import (
	"context"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/logging"
	"github.com/adverant/nexus/frame-ocr/internal/pipeline"
)

// Archive keeps finished runs queryable. PostgresClient implements it.
type Archive interface {
	BeginArchive(ctx context.Context, seq *pipeline.ResultSequence, outputPath string) (ArchiveTransaction, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}

// ArchiveTransaction is an archived run that is not yet visible.
type ArchiveTransaction interface {
	Commit() error
	Rollback() error
}

// StorageManager coordinates the document writer and the optional archive
type StorageManager struct {
	writer  *JSONWriter
	archive Archive
	logger  *logging.Logger
}

// NewStorageManager creates a storage manager. archive may be nil.
func NewStorageManager(writer *JSONWriter, archive Archive, logger *logging.Logger) *StorageManager {
	if writer == nil {
		writer = NewJSONWriter()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &StorageManager{
		writer:  writer,
		archive: archive,
		logger:  logger,
	}
}

// Persist writes seq to path and archives it.
func (sm *StorageManager) Persist(ctx context.Context, path string, seq *pipeline.ResultSequence) error {
	if sm.archive == nil {
		return apperrors.WithRunID(sm.writer.Write(path, seq), seq.RunID)
	}

	tx, err := sm.archive.BeginArchive(ctx, seq, path)
	if err != nil {
		return apperrors.NewArchiveError(seq.RunID, err)
	}

	doc, err := sm.writer.Stage(path, seq)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			sm.logger.Warn("Archive rollback failed", "run_id", seq.RunID, "error", rbErr)
		}
		return apperrors.WithRunID(err, seq.RunID)
	}

	if err := tx.Commit(); err != nil {
		sm.discard(doc)
		return apperrors.NewArchiveError(seq.RunID, err)
	}

	if err := doc.Publish(); err != nil {
		// An archived run always has its document.
		if delErr := sm.archive.DeleteRun(context.WithoutCancel(ctx), seq.RunID); delErr != nil {
			sm.logger.Warn("Failed to remove archived run after write failure", "run_id", seq.RunID, "error", delErr)
		}
		return apperrors.WithRunID(err, seq.RunID)
	}

	sm.logger.Debug("Run archived", "run_id", seq.RunID, "records", len(seq.Records))
	return nil
}

func (sm *StorageManager) discard(doc *StagedDocument) {
	if err := doc.Discard(); err != nil {
		sm.logger.Warn("Failed to remove staged document", "error", err)
	}
}

// Close closes the archive connection, if any
func (sm *StorageManager) Close() error {
	if sm.archive == nil {
		return nil
	}
	return sm.archive.Close()
}
