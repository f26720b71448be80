package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Profiles resolves display names from the profiles table with the same
// fallback chain the mobile client used: display name, then username, then
// nickname, then the local part of the email.
type Profiles struct {
	pool *pgxpool.Pool
}

func NewProfiles(pool *pgxpool.Pool) *Profiles {
	return &Profiles{pool: pool}
}

func (p *Profiles) DisplayName(ctx context.Context, userID string) (string, error) {
	var displayName, username, nickname, email sql.NullString
	err := p.pool.QueryRow(ctx, `
		SELECT display_name, username, nickname, email
		FROM profiles
		WHERE user_id = $1`,
		userID,
	).Scan(&displayName, &username, &nickname, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve display name: %w", err)
	}

	for _, candidate := range []sql.NullString{displayName, username, nickname} {
		if candidate.Valid && candidate.String != "" {
			return candidate.String, nil
		}
	}
	if email.Valid && email.String != "" {
		local, _, _ := strings.Cut(email.String, "@")
		return local, nil
	}
	return "", nil
}
