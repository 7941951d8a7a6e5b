package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summitroofing/beacon/internal/domain"
)

type Store struct {
	pool     *pgxpool.Pool
	sessions *SessionRepo
	events   *EventRepo
	funnels  *FunnelRepo
	logs     *LogRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		sessions: NewSessionRepo(pool),
		events:   NewEventRepo(pool),
		funnels:  NewFunnelRepo(pool),
		logs:     NewLogRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Sessions() domain.SessionRepository { return s.sessions }
func (s *Store) Events() domain.EventRepository     { return s.events }
func (s *Store) Funnels() domain.FunnelRepository   { return s.funnels }
func (s *Store) Logs() domain.LogRepository         { return s.logs }
