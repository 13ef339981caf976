package storage

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/pipeline"
)

// JSONWriter writes the result document to the filesystem.
type JSONWriter struct {
	Perm os.FileMode
}

// NewJSONWriter creates a writer producing 0644 files
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{Perm: 0o644}
}

// Write renders seq and replaces path with it. The document is written to a
// temporary file next to path and renamed into place, so a failed write
// leaves no partial output behind.
func (w *JSONWriter) Write(path string, seq *pipeline.ResultSequence) error {
	doc, err := w.Stage(path, seq)
	if err != nil {
		return err
	}
	return doc.Publish()
}

// StagedDocument is a fully written document that has not yet replaced its
// destination. Exactly one of Publish or Discard should be called.
type StagedDocument struct {
	tmpPath string
	path    string
}

// Stage renders seq into a temporary file next to path. path itself is not
// touched until Publish.
func (w *JSONWriter) Stage(path string, seq *pipeline.ResultSequence) (*StagedDocument, error) {
	data, err := seq.MarshalDocument()
	if err != nil {
		return nil, apperrors.NewOutputWriteError(path, err)
	}

	tmpPath, err := writeTemp(path, data, w.Perm)
	if err != nil {
		return nil, apperrors.NewOutputWriteError(path, err)
	}

	return &StagedDocument{tmpPath: tmpPath, path: path}, nil
}

// Publish moves the staged document over its destination.
func (d *StagedDocument) Publish() error {
	if err := os.Rename(d.tmpPath, d.path); err != nil {
		os.Remove(d.tmpPath)
		return apperrors.NewOutputWriteError(d.path, fmt.Errorf("failed to move document into place: %w", err))
	}
	return nil
}

// Discard removes the staged document, leaving the destination as it was.
func (d *StagedDocument) Discard() error {
	if err := os.Remove(d.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeTemp(path string, data []byte, perm os.FileMode) (name string, err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync document: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close document: %w", err)
	}

	return tmp.Name(), nil
}
