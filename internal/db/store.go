package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BorisDmv/post-api/internal/models"
)

const pgSchema = `
	CREATE TABLE IF NOT EXISTS posts (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL
	);`

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	pgQueries
	pool *pgxpool.Pool
}

func NewPgStore(ctx context.Context, databaseURL string, maxConns int) (*PgStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PgStore{pgQueries: pgQueries{q: pool}, pool: pool}, nil
}

func (s *PgStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	return nil
}

func (s *PgStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgQueries{q: tx})
	})
}

type pgQueries struct {
	q pgQuerier
}

func (p pgQueries) InsertPost(ctx context.Context, post *models.Post) error {
	const query = `
		INSERT INTO posts (username, password, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := p.q.QueryRow(ctx, query, post.Username, post.Password, post.Title, post.Content).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (p pgQueries) FindPost(ctx context.Context, id int64) (*models.Post, error) {
	const query = `
		SELECT id, username, password, title, content
		FROM posts
		WHERE id = $1
	`
	var post models.Post
	err := p.q.QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.Username,
		&post.Password,
		&post.Title,
		&post.Content,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (p pgQueries) UpdatePost(ctx context.Context, post *models.Post) error {
	_, err := p.q.Exec(ctx, `UPDATE posts SET title = $2, content = $3 WHERE id = $1`,
		post.ID, post.Title, post.Content)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (p pgQueries) DeletePost(ctx context.Context, id int64) error {
	if _, err := p.q.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (p pgQueries) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	const query = `
		SELECT id, username, password, title, content
		FROM posts
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := p.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0, limit)
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.Username, &post.Password, &post.Title, &post.Content); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return posts, nil
}

func (p pgQueries) CountPosts(ctx context.Context) (int, error) {
	var total int
	if err := p.q.QueryRow(ctx, "SELECT COUNT(*) FROM posts").Scan(&total); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}
