package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abeknur/ofd-check/internal/receipt"
)

// Fetcher resolves a fiscal QR URL into a parsed check
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*receipt.Receipt, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles check history operations
type Service struct {
	db         DB
	fetcher    Fetcher
	timeSource TimeSource
}

// NewService creates a new Service with the default time source
func NewService(db DB, fetcher Fetcher) *Service {
	return &Service{
		db:         db,
		fetcher:    fetcher,
		timeSource: &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, fetcher Fetcher, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		fetcher:    fetcher,
		timeSource: timeSrc,
	}
}

// ScanCheck fetches a check from its QR URL, parses it, and saves it.
// A check whose fiscal sign is already stored is rejected with ErrDuplicate.
func (s *Service) ScanCheck(ctx context.Context, rawURL string) (*StoredCheck, error) {
	check, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		slog.Error("Failed to fetch check",
			"url", rawURL,
			"error", err,
		)
		return nil, fmt.Errorf("fetching check: %w", err)
	}

	entry := &StoredCheck{
		Receipt: *check,
		SavedAt: s.timeSource.Now(),
	}

	if err := s.db.SaveCheck(entry); err != nil {
		if err == ErrDuplicate {
			return nil, err
		}
		return nil, fmt.Errorf("saving check: %w", err)
	}

	return entry, nil
}

// GetCheck retrieves a stored check by fiscal sign
func (s *Service) GetCheck(fiscalSign string) (*StoredCheck, error) {
	entry, err := s.db.GetCheck(fiscalSign)
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("getting check: %w", err)
	}
	return entry, nil
}

// ListChecks returns all stored checks, newest check first
func (s *Service) ListChecks() ([]*StoredCheck, error) {
	entries, err := s.db.ListChecks()
	if err != nil {
		return nil, fmt.Errorf("listing checks: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Receipt.DateTime.After(entries[j].Receipt.DateTime)
	})
	return entries, nil
}

// DeleteCheck removes a stored check by fiscal sign
func (s *Service) DeleteCheck(fiscalSign string) error {
	if err := s.db.DeleteCheck(fiscalSign); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("deleting check: %w", err)
	}
	return nil
}
