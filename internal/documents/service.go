package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"impact-backend/internal/extract"
	"impact-backend/internal/shared/storage/object"
	"impact-backend/internal/shared/telemetry"
)

// storageScope namespaces uploaded documents inside the object store.
const storageScope = "documents"

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  DocumentsRepo
}

// Upload saves the file to object storage, records the document, and
// extracts its text eagerly so analyses never pay the parse cost.
func (s *Service) Upload(ctx context.Context, kind, fileName string, r io.Reader) (Document, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !ValidKind(kind) {
		return Document{}, fmt.Errorf("%w: kind must be %q or %q", ErrInvalidInput, KindPRD, KindArchitecture)
	}
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, storageScope, fileName, r)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:         uuid.NewString(),
		Kind:       kind,
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	// Extraction failure is not fatal to the upload; Text falls back to
	// on-demand extraction later.
	if _, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName); err != nil {
		telemetry.Error("documents.extract_failed", map[string]any{
			"documentId": doc.ID,
			"error":      err.Error(),
		})
	} else {
		extractedKey := doc.StorageKey + ".extracted.txt"
		extractedAt := time.Now().UTC()
		if err := s.Repo.UpdateExtraction(ctx, doc.ID, extractedKey, extractedAt); err != nil {
			telemetry.Error("documents.extraction_record_failed", map[string]any{
				"documentId": doc.ID,
				"error":      err.Error(),
			})
		} else {
			doc.ExtractedTextKey = extractedKey
			doc.ExtractedAt = &extractedAt
		}
	}

	return doc, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	if documentID == "" {
		return Document{}, fmt.Errorf("%w: document id required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, documentID)
}

// List returns documents newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Text returns the extracted plain text of a document. It prefers the
// persisted extraction and only re-parses the raw payload when that copy
// is missing.
func (s *Service) Text(ctx context.Context, documentID string) (string, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}

	if doc.ExtractedTextKey != "" {
		body, err := s.Store.Open(ctx, doc.ExtractedTextKey)
		if err == nil {
			defer body.Close()
			raw, readErr := io.ReadAll(body)
			if readErr == nil {
				return string(raw), nil
			}
			err = readErr
		}
		telemetry.Error("documents.extracted_read_failed", map[string]any{
			"documentId": doc.ID,
			"error":      err.Error(),
		})
	}

	return extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
}
