package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"plantscan/internal/domain"
)

// FileStore persists guest counters on the local filesystem, one JSON document per
// subject. It backs the device-local side of the counter store, where no remote
// account exists to hold the count.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) Current(ctx context.Context, subject domain.Subject) (domain.DailyCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(subject)
}

func (s *FileStore) Rollover(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	return s.update(ctx, subject, func(cur domain.DailyCounter) (domain.DailyCounter, bool) {
		return rollover(cur, subject, day, time.Now())
	})
}

func (s *FileStore) IncrementUsed(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	return s.update(ctx, subject, func(cur domain.DailyCounter) (domain.DailyCounter, bool) {
		return incrementUsed(cur, subject, day, time.Now()), true
	})
}

func (s *FileStore) IncrementBonus(ctx context.Context, subject domain.Subject, day string, maxClicks int) (domain.DailyCounter, bool, error) {
	var applied bool
	next, err := s.update(ctx, subject, func(cur domain.DailyCounter) (domain.DailyCounter, bool) {
		var next domain.DailyCounter
		var changed bool
		next, changed, applied = incrementBonus(cur, subject, day, maxClicks, time.Now())
		return next, changed
	})
	if err != nil {
		return domain.DailyCounter{}, false, err
	}
	return next, applied, nil
}

func (s *FileStore) update(ctx context.Context, subject domain.Subject, fn func(domain.DailyCounter) (domain.DailyCounter, bool)) (domain.DailyCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.read(subject)
	if err != nil {
		return domain.DailyCounter{}, err
	}
	next, changed := fn(cur)
	if !changed {
		return next, nil
	}
	if err := s.write(subject, next); err != nil {
		return domain.DailyCounter{}, err
	}
	return next, nil
}

type counterDocument struct {
	Day       string    `json:"day"`
	Used      int       `json:"used"`
	Bonus     int       `json:"bonus"`
	Clicks    int       `json:"clicks"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *FileStore) read(subject domain.Subject) (domain.DailyCounter, error) {
	path, err := s.pathFor(subject)
	if err != nil {
		return domain.DailyCounter{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DailyCounter{}, nil
	}
	if err != nil {
		return domain.DailyCounter{}, fmt.Errorf("storage: read counter: %w", err)
	}
	var doc counterDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.DailyCounter{}, fmt.Errorf("storage: decode counter: %w", err)
	}
	return domain.DailyCounter{
		SubjectKey:  subject.Key(),
		DayKey:      doc.Day,
		UsedCount:   doc.Used,
		BonusCount:  doc.Bonus,
		ClicksToday: doc.Clicks,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// write replaces the document atomically so a crash never leaves a torn counter.
func (s *FileStore) write(subject domain.Subject, c domain.DailyCounter) error {
	path, err := s.pathFor(subject)
	if err != nil {
		return err
	}
	data, err := json.Marshal(counterDocument{
		Day:       c.DayKey,
		Used:      c.UsedCount,
		Bonus:     c.BonusCount,
		Clicks:    c.ClicksToday,
		UpdatedAt: c.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("storage: encode counter: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".counter-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: replace file: %w", err)
	}
	return nil
}

func (s *FileStore) pathFor(subject domain.Subject) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if strings.ContainsAny(subject.ID(), `/\`) || strings.Contains(subject.ID(), "..") {
		return "", fmt.Errorf("%w: unsafe subject id", domain.ErrInvalidSubject)
	}
	name := string(subject.Kind()) + "-" + subject.ID()
	if subject.ID() == "" {
		name = string(subject.Kind())
	}
	cleanKey, err := sanitizeKey("counters/" + name + ".json")
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || !strings.HasPrefix(cleaned, "counters/") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ domain.CounterStore = (*FileStore)(nil)
