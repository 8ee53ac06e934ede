package uploads

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	apperrors "pricinglab/internal/errors"
	"pricinglab/pkg/contracts/domain"
)

const metaFile = "upload.json"

// Options configures a Store.
type Options struct {
	Dir               string
	AllowedExtensions []string
	MaxBytes          int64
	HistoryLimit      int
}

// Store keeps uploaded files on disk and their records in memory. It is
// safe for concurrent use.
type Store struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	uploads map[string]*domain.Upload
	order   []string // newest first
}

// NewStore creates the uploads directory if needed.
func NewStore(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Dir == "" {
		return nil, apperrors.NewConfigError("uploads directory is required", nil)
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create uploads directory", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		opts:    opts,
		logger:  logger.With(slog.String("component", "upload_store")),
		now:     time.Now,
		uploads: make(map[string]*domain.Upload),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips directories and any character outside
// [A-Za-z0-9._-]. Whitespace becomes an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Save writes r to a new upload directory and records it. The checksum is
// the hex blake2b-256 of the content.
func (s *Store) Save(ctx context.Context, filename string, at domain.AnalysisType, r io.Reader) (*domain.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !at.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown analysis type %q", at))
	}

	name := SanitizeFilename(filename)
	if name == "" {
		return nil, apperrors.NewAppValidationError("a file name is required")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if !s.allowed(ext) {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("file type %q is not allowed (allowed: %s)",
			ext, strings.Join(s.opts.AllowedExtensions, ", ")))
	}

	id := uuid.NewString()
	dir := filepath.Join(s.opts.Dir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create upload directory", err)
	}

	size, sum, err := s.write(filepath.Join(dir, name), r)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	now := s.now().UTC()
	up := &domain.Upload{
		ID:           id,
		Filename:     name,
		AnalysisType: at,
		Size:         size,
		Checksum:     sum,
		Status:       domain.UploadStatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := writeMeta(dir, up); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	s.mu.Lock()
	s.uploads[id] = up
	s.order = append([]string{id}, s.order...)
	evicted := s.trimLocked()
	s.mu.Unlock()

	for _, old := range evicted {
		s.removeDir(old)
	}

	s.logger.Info("upload stored",
		slog.String("upload_id", id),
		slog.String("filename", name),
		slog.String("analysis_type", string(at)),
		slog.Int64("size_bytes", size))

	out := *up
	return &out, nil
}

func (s *Store) write(path string, r io.Reader) (int64, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, "", apperrors.NewStorageError("failed to create upload file", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return 0, "", apperrors.NewStorageError("failed to initialise checksum", err)
	}

	src := r
	if s.opts.MaxBytes > 0 {
		src = io.LimitReader(r, s.opts.MaxBytes+1)
	}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err != nil {
		return 0, "", apperrors.NewStorageError("failed to write upload file", err)
	}
	if s.opts.MaxBytes > 0 && n > s.opts.MaxBytes {
		return 0, "", apperrors.NewAppValidationError(fmt.Sprintf("file exceeds the %d byte upload limit", s.opts.MaxBytes))
	}
	if n == 0 {
		return 0, "", apperrors.NewAppValidationError("the uploaded file is empty")
	}
	if err := f.Sync(); err != nil {
		return 0, "", apperrors.NewStorageError("failed to sync upload file", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) allowed(ext string) bool {
	for _, a := range s.opts.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// trimLocked drops the oldest records beyond HistoryLimit and returns their ids.
func (s *Store) trimLocked() []string {
	if s.opts.HistoryLimit <= 0 || len(s.order) <= s.opts.HistoryLimit {
		return nil
	}
	evicted := append([]string(nil), s.order[s.opts.HistoryLimit:]...)
	s.order = s.order[:s.opts.HistoryLimit]
	for _, id := range evicted {
		delete(s.uploads, id)
	}
	return evicted
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("upload " + id)
	}
	out := *up
	return &out, nil
}

// History returns up to limit records, newest first. A non-empty status
// filters the list. limit <= 0 means no limit.
func (s *Store) History(limit int, status domain.UploadStatus) []domain.Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Upload, 0, len(s.order))
	for _, id := range s.order {
		up := s.uploads[id]
		if status != "" && up.Status != status {
			continue
		}
		out = append(out, *up)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// UpdateStatus sets the status of an upload. errMsg is stored for failures
// and cleared otherwise.
func (s *Store) UpdateStatus(id string, status domain.UploadStatus, errMsg string) (*domain.Upload, error) {
	s.mu.Lock()
	up, ok := s.uploads[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NewNotFoundError("upload " + id)
	}
	up.Status = status
	up.Error = ""
	if status == domain.UploadStatusFailed {
		up.Error = errMsg
	}
	up.UpdatedAt = s.now().UTC()
	out := *up
	s.mu.Unlock()

	if err := writeMeta(filepath.Join(s.opts.Dir, id), &out); err != nil {
		s.logger.Warn("failed to persist upload metadata",
			slog.String("upload_id", id),
			slog.String("error", err.Error()))
	}
	return &out, nil
}

// Path returns the on-disk location of the uploaded file.
func (s *Store) Path(id string) (string, error) {
	up, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.opts.Dir, up.ID, up.Filename), nil
}

// Open opens the uploaded file for reading.
func (s *Store) Open(id string) (io.ReadCloser, *domain.Upload, error) {
	up, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.opts.Dir, up.ID, up.Filename))
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to open upload", err)
	}
	return f, up, nil
}

// Delete removes the record and its directory.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.uploads[id]; !ok {
		s.mu.Unlock()
		return apperrors.NewNotFoundError("upload " + id)
	}
	delete(s.uploads, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.removeDir(id)
	s.logger.Info("upload deleted", slog.String("upload_id", id))
	return nil
}

// OlderThan returns the records created before cutoff, oldest first.
func (s *Store) OlderThan(cutoff time.Time) []domain.Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Upload
	for i := len(s.order) - 1; i >= 0; i-- {
		up := s.uploads[s.order[i]]
		if up.CreatedAt.Before(cutoff) {
			out = append(out, *up)
		}
	}
	return out
}

// Count returns how many uploads are tracked.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Restore reloads records from the metadata files under the uploads root.
// Directories without readable metadata are skipped.
func (s *Store) Restore() (int, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to read uploads directory", err)
	}

	var found []*domain.Upload
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		up, err := readMeta(filepath.Join(s.opts.Dir, entry.Name()))
		if err != nil || up.ID != entry.Name() {
			s.logger.Debug("skipping upload directory",
				slog.String("dir", entry.Name()))
			continue
		}
		found = append(found, up)
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})

	s.mu.Lock()
	for _, up := range found {
		if _, ok := s.uploads[up.ID]; ok {
			continue
		}
		s.uploads[up.ID] = up
		s.order = append(s.order, up.ID)
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.uploads[s.order[i]].CreatedAt.After(s.uploads[s.order[j]].CreatedAt)
	})
	evicted := s.trimLocked()
	s.mu.Unlock()

	for _, id := range evicted {
		s.removeDir(id)
	}
	return len(found) - len(evicted), nil
}

func (s *Store) removeDir(id string) {
	if err := os.RemoveAll(filepath.Join(s.opts.Dir, filepath.Base(id))); err != nil {
		s.logger.Warn("failed to remove upload directory",
			slog.String("upload_id", id),
			slog.String("error", err.Error()))
	}
}

func writeMeta(dir string, up *domain.Upload) error {
	data, err := json.MarshalIndent(up, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode upload metadata", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write upload metadata", err)
	}
	return nil
}

func readMeta(dir string) (*domain.Upload, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, err
	}
	var up domain.Upload
	if err := json.Unmarshal(data, &up); err != nil {
		return nil, err
	}
	return &up, nil
}
