package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pdfrag_documents (
    doc_id        TEXT PRIMARY KEY,
    filename      TEXT NOT NULL,
    title         TEXT NOT NULL,
    source        TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    mode          TEXT NOT NULL,
    page_count    INTEGER NOT NULL DEFAULT 0,
    section_count INTEGER NOT NULL DEFAULT 0,
    chunk_count   INTEGER NOT NULL DEFAULT 0,
    sections      JSONB,
    chunks        JSONB,
    markdown      TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS pdfrag_documents_hash_idx ON pdfrag_documents (content_hash);
`

const summaryColumns = `doc_id, filename, title, source, content_hash, mode, page_count, section_count, chunk_count, created_at`

// Postgres stores records in one table with JSONB sections and chunks.
type Postgres struct {
	DB *pgxpool.Pool
}

// NewPostgres connects and creates the schema if needed.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	if err := rec.normalize(); err != nil {
		return err
	}
	sections, err := json.Marshal(rec.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	chunks, err := json.Marshal(rec.Chunks)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}

	_, err = p.DB.Exec(ctx, `
        INSERT INTO pdfrag_documents (doc_id, filename, title, source, content_hash, mode,
            page_count, section_count, chunk_count, sections, chunks, markdown, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13)
        ON CONFLICT (doc_id) DO UPDATE SET
            filename = EXCLUDED.filename, title = EXCLUDED.title, source = EXCLUDED.source,
            content_hash = EXCLUDED.content_hash, mode = EXCLUDED.mode,
            page_count = EXCLUDED.page_count, section_count = EXCLUDED.section_count,
            chunk_count = EXCLUDED.chunk_count, sections = EXCLUDED.sections,
            chunks = EXCLUDED.chunks, markdown = EXCLUDED.markdown;
        `,
		rec.DocID, rec.Filename, rec.Title, rec.Source, rec.ContentHash, rec.Mode,
		rec.PageCount, rec.SectionCount, rec.ChunkCount, string(sections), string(chunks), rec.Markdown, rec.CreatedAt)
	if err != nil {
		return pgErr("save", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, docID string) (Record, error) {
	var rec Record
	var sections, chunks []byte
	err := p.DB.QueryRow(ctx, `
        SELECT `+summaryColumns+`, sections, chunks, markdown
        FROM pdfrag_documents WHERE doc_id = $1;
        `, docID).Scan(&rec.DocID, &rec.Filename, &rec.Title, &rec.Source, &rec.ContentHash, &rec.Mode,
		&rec.PageCount, &rec.SectionCount, &rec.ChunkCount, &rec.CreatedAt, &sections, &chunks, &rec.Markdown)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, pgErr("get", err)
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &rec.Sections); err != nil {
			return Record{}, fmt.Errorf("decode sections: %w", err)
		}
	}
	if len(chunks) > 0 {
		if err := json.Unmarshal(chunks, &rec.Chunks); err != nil {
			return Record{}, fmt.Errorf("decode chunks: %w", err)
		}
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context) ([]Record, error) {
	rows, err := p.DB.Query(ctx, `
        SELECT `+summaryColumns+`
        FROM pdfrag_documents
        ORDER BY created_at DESC, doc_id;
        `)
	if err != nil {
		return nil, pgErr("list", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.DocID, &rec.Filename, &rec.Title, &rec.Source, &rec.ContentHash, &rec.Mode,
			&rec.PageCount, &rec.SectionCount, &rec.ChunkCount, &rec.CreatedAt); err != nil {
			return nil, pgErr("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("list", err)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, docID string) error {
	tag, err := p.DB.Exec(ctx, `DELETE FROM pdfrag_documents WHERE doc_id = $1;`, docID)
	if err != nil {
		return pgErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FindByHash(ctx context.Context, hash string) (string, error) {
	var docID string
	err := p.DB.QueryRow(ctx, `
        SELECT doc_id FROM pdfrag_documents WHERE content_hash = $1
        ORDER BY created_at LIMIT 1;
        `, hash).Scan(&docID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", pgErr("find by hash", err)
	}
	return docID, nil
}

func (p *Postgres) Close(context.Context) error {
	p.DB.Close()
	return nil
}

func pgErr(op string, err error) error {
	wrapped := fmt.Errorf("postgres %s: %w", op, err)
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return Retryable(wrapped)
	}
	return wrapped
}
