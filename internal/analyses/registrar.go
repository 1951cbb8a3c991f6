package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"impact-backend/internal/analysis"
	"impact-backend/internal/shared/storage/object"
)

const reportPrefix = "reports"

// ObjectRegistrar stores rendered reports in the object store under
// reports/<uuid>.md and returns the generated UUID as the report ID.
type ObjectRegistrar struct {
	Store object.ObjectStore

	// newID is overridable in tests; defaults to uuid.NewString.
	newID func() string
}

// NewObjectRegistrar constructs an ObjectRegistrar.
func NewObjectRegistrar(store object.ObjectStore) *ObjectRegistrar {
	return &ObjectRegistrar{Store: store}
}

type keySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

// Register persists the report bytes and returns a stable report ID.
func (r *ObjectRegistrar) Register(ctx context.Context, report []byte) (string, error) {
	saver, ok := r.Store.(keySaver)
	if !ok {
		return "", errors.New("object store does not support SaveWithKey")
	}

	newID := r.newID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()

	key := reportKey(id)
	if _, err := saver.SaveWithKey(ctx, key, "text/markdown; charset=utf-8", bytes.NewReader(report)); err != nil {
		return "", fmt.Errorf("register report key=%s: %w", key, err)
	}
	return id, nil
}

// Fetch returns the report bytes registered under id.
func (r *ObjectRegistrar) Fetch(ctx context.Context, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\") {
		return nil, analysis.ErrReportNotFound
	}

	body, err := r.Store.Open(ctx, reportKey(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, analysis.ErrReportNotFound
		}
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func reportKey(id string) string {
	return path.Join(reportPrefix, id+".md")
}

var _ analysis.Registrar = (*ObjectRegistrar)(nil)
