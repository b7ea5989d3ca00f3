package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore reads profiles from the account database.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to the account database and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping profile db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile %s: %w", userID, err)
	}
	return p, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
