package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanodrive/common"
	"nanodrive/models"
)

func names(nodes []models.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func testNodeRepository(t *testing.T, newRepo func(t *testing.T) NodeRepository) {
	ctx := context.Background()

	t.Run("insert assigns id and timestamp", func(t *testing.T) {
		repo := newRepo(t)
		folder := models.NewFolder("u1", "/", "Docs")
		id, err := repo.Insert(ctx, &folder)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, folder.ID)
		assert.False(t, folder.LastModified.IsZero())

		got, err := repo.Get(ctx, "u1", models.KindFolder, id)
		require.NoError(t, err)
		assert.Equal(t, "Docs", got.Name)
		assert.Equal(t, "/", got.Path)
		assert.Equal(t, models.KindFolder, got.Kind)
	})

	t.Run("query matches path exactly and per owner", func(t *testing.T) {
		repo := newRepo(t)
		for _, n := range []models.Node{
			models.NewFolder("u1", "/", "Docs"),
			models.NewFolder("u1", "/Docs", "2024"),
			models.NewFolder("u1", "/DocsOld", "x"),
			models.NewFolder("u2", "/Docs", "theirs"),
		} {
			node := n
			_, err := repo.Insert(ctx, &node)
			require.NoError(t, err)
		}

		got, err := repo.Query(ctx, "u1", models.KindFolder, "/Docs")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024"}, names(got))

		tree, err := repo.QueryTree(ctx, "u1", models.KindFolder, "/Docs")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024"}, names(tree))

		all, err := repo.QueryTree(ctx, "u1", models.KindFolder, "/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Docs", "2024", "x"}, names(all))
	})

	t.Run("tree is case sensitive", func(t *testing.T) {
		repo := newRepo(t)
		for _, n := range []models.Node{
			models.NewFolder("u1", "/", "Photos"),
			models.NewFolder("u1", "/", "photos"),
			models.NewFolder("u1", "/Photos", "2024"),
			models.NewFolder("u1", "/photos", "2023"),
			models.NewFolder("u1", "/photos/2023", "summer"),
		} {
			node := n
			_, err := repo.Insert(ctx, &node)
			require.NoError(t, err)
		}

		tree, err := repo.QueryTree(ctx, "u1", models.KindFolder, "/Photos")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024"}, names(tree))

		tree, err = repo.QueryTree(ctx, "u1", models.KindFolder, "/photos")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"2023", "summer"}, names(tree))
	})

	t.Run("files carry payload", func(t *testing.T) {
		repo := newRepo(t)
		file := models.NewFile("u1", "/", "a.png", 42, "image/png", "users/u1/files/x_a.png", "https://blob/x")
		id, err := repo.Insert(ctx, &file)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "u1", models.KindFile, id)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.Size)
		assert.Equal(t, "image/png", got.MimeType)
		assert.Equal(t, "users/u1/files/x_a.png", got.BlobLocation)
		assert.Equal(t, "https://blob/x", got.DownloadURL)

		folders, err := repo.Query(ctx, "u1", models.KindFolder, "/")
		require.NoError(t, err)
		assert.Empty(t, folders)
	})

	t.Run("update renames and moves", func(t *testing.T) {
		repo := newRepo(t)
		folder := models.NewFolder("u1", "/", "Docs")
		id, err := repo.Insert(ctx, &folder)
		require.NoError(t, err)

		name, path := "Papers", "/Archive"
		require.NoError(t, repo.Update(ctx, "u1", models.KindFolder, id, NodeUpdate{Name: &name, Path: &path}))

		got, err := repo.Get(ctx, "u1", models.KindFolder, id)
		require.NoError(t, err)
		assert.Equal(t, "Papers", got.Name)
		assert.Equal(t, "/Archive", got.Path)
		assert.False(t, got.LastModified.Before(folder.LastModified))
	})

	t.Run("missing ids are not found", func(t *testing.T) {
		repo := newRepo(t)
		folder := models.NewFolder("u1", "/", "Docs")
		id, err := repo.Insert(ctx, &folder)
		require.NoError(t, err)

		_, err = repo.Get(ctx, "u2", models.KindFolder, id)
		assert.ErrorIs(t, err, common.ErrNotFound)

		name := "x"
		err = repo.Update(ctx, "u1", models.KindFile, id, NodeUpdate{Name: &name})
		assert.ErrorIs(t, err, common.ErrNotFound)

		require.NoError(t, repo.Delete(ctx, "u1", models.KindFolder, id))
		assert.ErrorIs(t, repo.Delete(ctx, "u1", models.KindFolder, id), common.ErrNotFound)
	})
}

func testRecordRepository(t *testing.T, newRepo func(t *testing.T) RecordRepository) {
	ctx := context.Background()

	t.Run("insert get delete", func(t *testing.T) {
		repo := newRepo(t)
		rec := models.TransformRecord{OwnerID: "u1", OriginalFileName: "cat.png", Prompt: "cartoon", Mode: "test"}
		id, err := repo.Insert(ctx, &rec)
		require.NoError(t, err)
		assert.False(t, rec.CreatedAt.IsZero())

		got, err := repo.Get(ctx, "u1", id)
		require.NoError(t, err)
		assert.Equal(t, "cat.png", got.OriginalFileName)
		assert.Equal(t, "cartoon", got.Prompt)

		_, err = repo.Get(ctx, "u2", id)
		assert.ErrorIs(t, err, common.ErrNotFound)

		require.NoError(t, repo.Delete(ctx, "u1", id))
		assert.ErrorIs(t, repo.Delete(ctx, "u1", id), common.ErrNotFound)
	})

	t.Run("list is scoped to owner", func(t *testing.T) {
		repo := newRepo(t)
		for _, owner := range []string{"u1", "u1", "u2"} {
			rec := models.TransformRecord{OwnerID: owner, Prompt: "p"}
			_, err := repo.Insert(ctx, &rec)
			require.NoError(t, err)
		}

		list, err := repo.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, list, 2)
		for i := 1; i < len(list); i++ {
			assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt))
		}

		empty, err := repo.ListByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
