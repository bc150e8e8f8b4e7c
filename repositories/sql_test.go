package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanodrive/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, dialect, err := OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	require.Equal(t, DialectSQLite, dialect)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLNodeRepository(t *testing.T) {
	testNodeRepository(t, func(t *testing.T) NodeRepository {
		return NewSQLNodeRepository(setupDB(t), DialectSQLite)
	})
}

func TestSQLRecordRepository(t *testing.T) {
	testRecordRepository(t, func(t *testing.T) RecordRepository {
		return NewSQLRecordRepository(setupDB(t), DialectSQLite)
	})
}

func TestSQLRecordRepositoryNewestFirst(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLRecordRepository(db, DialectSQLite)
	ctx := context.Background()

	for i, prompt := range []string{"first", "second", "third"} {
		rec := models.TransformRecord{OwnerID: "u1", Prompt: prompt}
		id, err := repo.Insert(ctx, &rec)
		require.NoError(t, err)
		_, err = db.Exec("UPDATE transform_records SET created_at = ? WHERE id = ?", 1000+i, id)
		require.NoError(t, err)
	}

	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{list[0].Prompt, list[1].Prompt, list[2].Prompt})
}

func TestSQLQueryTreeTreatsWildcardsLiterally(t *testing.T) {
	repo := NewSQLNodeRepository(setupDB(t), DialectSQLite)
	ctx := context.Background()

	for _, n := range []models.Node{
		models.NewFolder("u1", "/a_b", "inside"),
		models.NewFolder("u1", "/axb", "outside"),
	} {
		node := n
		_, err := repo.Insert(ctx, &node)
		require.NoError(t, err)
	}

	got, err := repo.QueryTree(ctx, "u1", models.KindFolder, "/a_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, names(got))
}

func TestSQLQueryTreeMatchesMultibyteFolders(t *testing.T) {
	repo := NewSQLNodeRepository(setupDB(t), DialectSQLite)
	ctx := context.Background()

	for _, n := range []models.Node{
		models.NewFolder("u1", "/Fotos é", "inside"),
		models.NewFolder("u1", "/Fotos e", "outside"),
	} {
		node := n
		_, err := repo.Insert(ctx, &node)
		require.NoError(t, err)
	}

	got, err := repo.QueryTree(ctx, "u1", models.KindFolder, "/Fotos é")
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, names(got))
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM files WHERE owner_id = ? AND path = ?"
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, "SELECT * FROM files WHERE owner_id = $1 AND path = $2", DialectPostgres.rebind(q))
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	_, _, err := OpenSQL(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
