//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("facegate"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewDB(pool, instrument.NewNoop())
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestDB_Encodings(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveEncoding(ctx, entity.EnrolledRecord{Identity: "bob", Encoding: entity.Encoding{0.5, -1}, EnrolledAt: at.Add(time.Hour)}))
	require.NoError(t, db.SaveEncoding(ctx, entity.EnrolledRecord{Identity: "alice", Encoding: entity.Encoding{1, 2}, EnrolledAt: at}))
	require.NoError(t, db.SaveEncoding(ctx, entity.EnrolledRecord{Identity: "alice", Encoding: entity.Encoding{3, 4}, EnrolledAt: at}))

	recs, err := db.ListEncodings(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, entity.Identity("alice"), recs[0].Identity)
	assert.Equal(t, entity.Encoding{3, 4}, recs[0].Encoding)
	assert.True(t, at.Equal(recs[0].EnrolledAt))
	assert.Equal(t, entity.Encoding{0.5, -1}, recs[1].Encoding)

	require.NoError(t, db.DeleteEncoding(ctx, "alice"))
	require.NoError(t, db.DeleteEncoding(ctx, "alice"))

	recs, err = db.ListEncodings(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestDB_Secrets(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, ok, err := db.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutSecret(ctx, "alice", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, db.PutSecret(ctx, "bob", "KRSXG5CTMVRXEZLU"))

	secret, ok, err := db.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", secret)

	ids, err := db.ListSecrets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.Identity{"alice", "bob"}, ids)

	require.NoError(t, db.DeleteSecret(ctx, "alice"))
	_, ok, err = db.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
