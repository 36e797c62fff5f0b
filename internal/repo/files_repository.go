package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a stored file id has no row.
var ErrNotFound = errors.New("stored file not found")

// StoredFile is a durable copy of a Telegram-hosted attachment.
// Rows are immutable once written; the pipeline never deletes them.
type StoredFile struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Mimetype  string    `json:"mimetype"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type FilesRepository struct {
	pool *pgxpool.Pool
}

func NewFilesRepository(pool *pgxpool.Pool) *FilesRepository {
	return &FilesRepository{pool: pool}
}

func (r *FilesRepository) Migrate(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS stored_files (
  id         bigserial PRIMARY KEY,
  filename   text NOT NULL,
  mimetype   text NOT NULL,
  size       bigint NOT NULL,
  data       bytea NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *FilesRepository) SaveFile(ctx context.Context, f StoredFile) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO stored_files(filename, mimetype, size, data)
VALUES($1, $2, $3, $4)
RETURNING id
`, f.Filename, f.Mimetype, f.Size, f.Data).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *FilesRepository) GetFile(ctx context.Context, id int64) (StoredFile, error) {
	var f StoredFile
	err := r.pool.QueryRow(ctx, `
SELECT id, filename, mimetype, size, data, created_at
FROM stored_files
WHERE id = $1
`, id).Scan(&f.ID, &f.Filename, &f.Mimetype, &f.Size, &f.Data, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, err
	}
	return f, nil
}

func (r *FilesRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
