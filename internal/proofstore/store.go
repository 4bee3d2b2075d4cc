// Package proofstore keeps uploaded payment-proof artifacts on a filesystem.
package proofstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

var (
	ErrTooLarge       = errors.New("proof exceeds size limit")
	ErrUnsupportedExt = errors.New("proof must be a jpg, png or pdf file")
	ErrInvalidRef     = errors.New("invalid proof reference")
)

const DefaultMaxBytes = 5 << 20

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// Store writes proofs under ULID-named files so references sort by upload time.
type Store struct {
	fs       afero.Fs
	maxBytes int64

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func New(fs afero.Fs, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{
		fs:       fs,
		maxBytes: maxBytes,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		now:      time.Now,
	}
}

// NewDisk roots the store at dir on the local disk.
func NewDisk(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), maxBytes), nil
}

// Save stores content and returns its reference. Uploads over the size limit
// are discarded.
func (s *Store) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, ErrUnsupportedExt)
	}

	ref := s.newID() + ext
	f, err := s.fs.OpenFile(ref, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("%w: create proof: %v", domain.ErrDependencyUnavailable, err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(content, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("write proof: %w", copyErr)
	case closeErr != nil:
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("%w: close proof: %v", domain.ErrDependencyUnavailable, closeErr)
	case n > s.maxBytes:
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, ErrTooLarge)
	case n == 0:
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("%w: proof is empty", domain.ErrInvalidInput)
	}
	return ref, nil
}

func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: proof %s", domain.ErrRecordNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open proof: %v", domain.ErrDependencyUnavailable, err)
	}
	return f, nil
}

// Delete removes ref. Deleting a missing proof is not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.fs.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete proof: %v", domain.ErrDependencyUnavailable, err)
	}
	return nil
}

// ContentType maps a reference to the media type it was accepted as.
func ContentType(ref string) string {
	switch strings.ToLower(path.Ext(ref)) {
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func checkRef(ref string) error {
	ext := path.Ext(ref)
	if !allowedExt[strings.ToLower(ext)] {
		return ErrInvalidRef
	}
	if _, err := ulid.ParseStrict(strings.TrimSuffix(ref, ext)); err != nil {
		return ErrInvalidRef
	}
	return nil
}
