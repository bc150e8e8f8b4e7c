package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"nanodrive/models"
)

const nodeColumns = "id, type, name, path, owner_id, last_modified, size, mime_type, blob_location, download_url"

type SQLNodeRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLNodeRepository(db *sql.DB, dialect Dialect) *SQLNodeRepository {
	return &SQLNodeRepository{db: db, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (models.Node, error) {
	var n models.Node
	var kind string
	var modified int64
	err := row.Scan(&n.ID, &kind, &n.Name, &n.Path, &n.OwnerID, &modified, &n.Size, &n.MimeType, &n.BlobLocation, &n.DownloadURL)
	if err != nil {
		return models.Node{}, err
	}
	n.Kind = models.NodeKind(kind)
	n.LastModified = time.UnixMilli(modified).UTC()
	return n, nil
}

func (r *SQLNodeRepository) Query(ctx context.Context, ownerID string, kind models.NodeKind, path string) ([]models.Node, error) {
	table, err := collectionName(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ? AND path = ?", nodeColumns, table)
	return r.list(ctx, table, query, ownerID, path)
}

func (r *SQLNodeRepository) QueryTree(ctx context.Context, ownerID string, kind models.NodeKind, dir string) ([]models.Node, error) {
	table, err := collectionName(kind)
	if err != nil {
		return nil, err
	}
	if dir == models.RootPath {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ?", nodeColumns, table)
		return r.list(ctx, table, query, ownerID)
	}

	// LIKE folds ASCII case in sqlite, so descendants are matched on an exact prefix.
	prefix := dir + "/"
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ? AND (path = ? OR substr(path, 1, ?) = ?)", nodeColumns, table)
	return r.list(ctx, table, query, ownerID, dir, utf8.RuneCountInString(prefix), prefix)
}

func (r *SQLNodeRepository) list(ctx context.Context, table, query string, args ...any) ([]models.Node, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	nodes := make([]models.Node, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", table, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return nodes, nil
}

func (r *SQLNodeRepository) Get(ctx context.Context, ownerID string, kind models.NodeKind, id string) (*models.Node, error) {
	table, err := collectionName(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND owner_id = ?", nodeColumns, table)

	n, err := scanNode(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(string(kind), id)
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &n, nil
}

func (r *SQLNodeRepository) Insert(ctx context.Context, node *models.Node) (string, error) {
	table, err := collectionName(node.Kind)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (id, type, name, path, owner_id, last_modified, size, mime_type, blob_location, download_url)
VALUES (?, ?, ?, ?, ?, %s, ?, ?, ?, ?) RETURNING last_modified`, table, r.dialect.nowMillis())

	var modified int64
	err = r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		id, string(node.Kind), node.Name, node.Path, node.OwnerID,
		node.Size, node.MimeType, node.BlobLocation, node.DownloadURL,
	).Scan(&modified)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	node.ID = id
	node.LastModified = time.UnixMilli(modified).UTC()
	return id, nil
}

func (r *SQLNodeRepository) Update(ctx context.Context, ownerID string, kind models.NodeKind, id string, update NodeUpdate) error {
	table, err := collectionName(kind)
	if err != nil {
		return err
	}

	sets := []string{"last_modified = " + r.dialect.nowMillis()}
	var args []any
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Path != nil {
		sets = append(sets, "path = ?")
		args = append(args, *update.Path)
	}
	args = append(args, id, ownerID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND owner_id = ?", table, strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	return expectOneRow(result, string(kind), id)
}

func (r *SQLNodeRepository) Delete(ctx context.Context, ownerID string, kind models.NodeKind, id string) error {
	table, err := collectionName(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND owner_id = ?", table)
	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return expectOneRow(result, string(kind), id)
}

func expectOneRow(result sql.Result, what, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound(what, id)
	}
	return nil
}
