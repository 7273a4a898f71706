package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
)

func (s *DB) SaveEncoding(ctx context.Context, rec entity.EnrolledRecord) (err error) {
	ctx, span := s.startSpan(ctx, "SaveEncoding")
	defer func() { s.endSpan(span, err) }()

	vec := pgvector.NewVector(rec.Encoding)
	_, err = s.conn.Exec(ctx, `
		INSERT INTO identity_face_encodings (identity, encoding, enrolled_at)
		VALUES ($1, $2::text::vector, $3)
		ON CONFLICT (identity) DO UPDATE SET
			encoding = EXCLUDED.encoding,
			enrolled_at = EXCLUDED.enrolled_at`,
		string(rec.Identity), vec.String(), rec.EnrolledAt,
	)
	return s.mapError(err)
}

func (s *DB) DeleteEncoding(ctx context.Context, id entity.Identity) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteEncoding")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `DELETE FROM identity_face_encodings WHERE identity = $1`, string(id))
	return s.mapError(err)
}

func (s *DB) ListEncodings(ctx context.Context) (_ []entity.EnrolledRecord, err error) {
	ctx, span := s.startSpan(ctx, "ListEncodings")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT identity, encoding::text, enrolled_at
		FROM identity_face_encodings
		ORDER BY enrolled_at, identity`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.EnrolledRecord
	for rows.Next() {
		var (
			rec entity.EnrolledRecord
			raw string
			vec pgvector.Vector
		)
		if err := rows.Scan(&rec.Identity, &raw, &rec.EnrolledAt); err != nil {
			return nil, s.mapError(err)
		}
		if err := vec.Parse(raw); err != nil {
			return nil, err
		}
		rec.Encoding = vec.Slice()
		out = append(out, rec)
	}

	return out, s.mapError(rows.Err())
}
