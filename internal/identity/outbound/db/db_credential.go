package db

import (
	"context"
	"errors"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
)

func (s *DB) GetSecret(ctx context.Context, id entity.Identity) (_ string, _ bool, err error) {
	ctx, span := s.startSpan(ctx, "GetSecret")
	defer func() { s.endSpan(span, err) }()

	var secret string
	err = s.mapError(s.conn.QueryRow(ctx,
		`SELECT secret FROM identity_credentials WHERE identity = $1`, string(id)).Scan(&secret))
	if errors.Is(err, goerror.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return secret, true, nil
}

func (s *DB) PutSecret(ctx context.Context, id entity.Identity, secret string) (err error) {
	ctx, span := s.startSpan(ctx, "PutSecret")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO identity_credentials (identity, secret) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET secret = EXCLUDED.secret`,
		string(id), secret,
	)
	return s.mapError(err)
}

func (s *DB) DeleteSecret(ctx context.Context, id entity.Identity) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteSecret")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `DELETE FROM identity_credentials WHERE identity = $1`, string(id))
	return s.mapError(err)
}

func (s *DB) ListSecrets(ctx context.Context) (_ []entity.Identity, err error) {
	ctx, span := s.startSpan(ctx, "ListSecrets")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `SELECT identity FROM identity_credentials ORDER BY identity`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.Identity
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, entity.Identity(id))
	}

	return out, s.mapError(rows.Err())
}
