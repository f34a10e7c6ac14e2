// Package license accepts driving-license documents before they reach the identity flow.
package license

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/go-rental-auth/internal/domain"
	"github.com/go-rental-auth/internal/pkg/id"
)

// MaxSize is the largest accepted document, 5 MiB.
const MaxSize = 5 << 20

const (
	keyPrefix = "licenses"
	sniffLen  = 3072
)

// ErrTooLarge is a validation error for documents over MaxSize.
var ErrTooLarge = fmt.Errorf("license file exceeds %d bytes: %w", MaxSize, domain.ErrValidation)

// allowed maps an accepted extension to the content type its bytes must have.
var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// Storage is the object store holding accepted documents.
type Storage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Intake struct {
	store Storage
	log   *slog.Logger
}

func NewIntake(store Storage, log *slog.Logger) *Intake {
	if log == nil {
		log = slog.Default()
	}
	return &Intake{store: store, log: log}
}

// Accept checks the document's extension, size and sniffed type, stores it and returns its key.
func (i *Intake) Accept(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return "", fmt.Errorf("license file must be jpg, jpeg, png or pdf: %w", domain.ErrValidation)
	}
	if size > MaxSize {
		return "", ErrTooLarge
	}
	if size <= 0 {
		return "", fmt.Errorf("license file is empty: %w", domain.ErrValidation)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read license file: %w", err)
	}
	head = head[:n]
	if mt := mimetype.Detect(head); !mt.Is(want) {
		return "", fmt.Errorf("license file content is %s, not %s: %w", mt.String(), want, domain.ErrValidation)
	}

	key := id.Key(keyPrefix, ext)
	body := io.MultiReader(bytes.NewReader(head), r)
	if err := i.store.Upload(ctx, key, body, size, want); err != nil {
		return "", fmt.Errorf("store license file: %w: %w", domain.ErrUnavailable, err)
	}
	i.log.Info("license file stored", "key", key, "size", size)
	return key, nil
}

// Discard removes a stored document. Failures are logged since an orphaned object is harmless.
func (i *Intake) Discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := i.store.Delete(ctx, key); err != nil {
		i.log.Warn("could not delete license file", "key", key, "err", err)
	}
}
