// Package query serves the read-only lookups run against the target store
// after a migration.
package query

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tordrt/footstats/internal/db"
)

// ResultLimit caps the rows returned by every lookup.
const ResultLimit = 5

// Store is a target connection able to answer the lookups.
type Store interface {
	SearchPlayers(ctx context.Context, fragment string, limit int) ([]db.PlayerRecord, error)
	TopTeams(ctx context.Context, limit int) ([]db.TeamStanding, error)
	Close(ctx context.Context) error
}

// Service opens a fresh store connection for each call and releases it
// before returning.
type Service struct {
	open   func(ctx context.Context) (Store, error)
	logger logrus.FieldLogger
}

// New creates a query service.
func New(open func(ctx context.Context) (Store, error), logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{open: open, logger: logger}
}

// SearchPlayers returns up to ResultLimit players whose name contains
// fragment, ignoring case. No match is an empty slice and a nil error.
func (s *Service) SearchPlayers(ctx context.Context, fragment string) ([]db.PlayerRecord, error) {
	var players []db.PlayerRecord
	err := s.withStore(ctx, func(store Store) error {
		var err error
		players, err = store.SearchPlayers(ctx, fragment, ResultLimit)
		return err
	})
	return players, err
}

// TopTeams returns up to ResultLimit teams by descending total points.
func (s *Service) TopTeams(ctx context.Context) ([]db.TeamStanding, error) {
	var teams []db.TeamStanding
	err := s.withStore(ctx, func(store Store) error {
		var err error
		teams, err = store.TopTeams(ctx, ResultLimit)
		return err
	})
	return teams, err
}

func (s *Service) withStore(ctx context.Context, fn func(Store) error) error {
	store, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to close target connection")
		}
	}()
	return fn(store)
}
