package db

import (
	"context"
	"database/sql"

	"github.com/onnwee/streamwatch/watchlist"
)

// WatchlistStore keeps one provider's watchlist in the watched_streamers table.
type WatchlistStore struct {
	db       *sql.DB
	provider string
}

// NewWatchlistStore scopes a store to provider. Run RunMigrations first.
func NewWatchlistStore(db *sql.DB, provider string) *WatchlistStore {
	return &WatchlistStore{db: db, provider: provider}
}

var _ watchlist.Store = (*WatchlistStore)(nil)

func (s *WatchlistStore) Add(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watched_streamers (provider, name, added_at) VALUES ($1, $2, clock_timestamp())
		 ON CONFLICT (provider, name) DO NOTHING`, s.provider, name)
	if err != nil {
		return false, watchlist.WrapStorage("postgres", "add", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, watchlist.WrapStorage("postgres", "add", err)
	}
	return n == 1, nil
}

func (s *WatchlistStore) Remove(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watched_streamers WHERE provider = $1 AND name = $2`, s.provider, name)
	if err != nil {
		return false, watchlist.WrapStorage("postgres", "remove", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, watchlist.WrapStorage("postgres", "remove", err)
	}
	return n > 0, nil
}

func (s *WatchlistStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM watched_streamers WHERE provider = $1 ORDER BY added_at, name`, s.provider)
	if err != nil {
		return nil, watchlist.WrapStorage("postgres", "list", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, watchlist.WrapStorage("postgres", "list", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, watchlist.WrapStorage("postgres", "list", err)
	}
	return names, nil
}
