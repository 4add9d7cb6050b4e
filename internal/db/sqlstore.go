package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/BorisDmv/post-api/internal/models"
)

type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

var schemas = map[Dialect][]string{
	DialectSQLite: {
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS posts(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			password TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL
		);`,
	},
	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS posts(
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			title VARCHAR(255) NOT NULL,
			content TEXT NOT NULL
		);`,
	},
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore serves the database/sql backends. Both dialects share "?"
// placeholders and LastInsertId, so only the schema differs.
type SQLStore struct {
	sqlQueries
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens a sqlite database file, creating its directory if needed.
// A single connection is kept so ":memory:" databases survive across calls.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrUnsupportedURL)
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, DialectSQLite)
}

func OpenMySQL(ctx context.Context, dsn string, maxConns int) (*SQLStore, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	return newSQLStore(ctx, db, DialectMySQL)
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	return &SQLStore{sqlQueries: sqlQueries{q: db}, db: db, dialect: dialect}, nil
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemas[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect, err)
		}
	}
	return nil
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(sqlQueries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlQueries struct {
	q sqlQuerier
}

func (s sqlQueries) InsertPost(ctx context.Context, post *models.Post) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO posts(username,password,title,content) VALUES(?,?,?,?)`,
		post.Username, post.Password, post.Title, post.Content)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert post id: %w", err)
	}
	post.ID = id
	return nil
}

func (s sqlQueries) FindPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := s.q.QueryRowContext(ctx, `SELECT id, username, password, title, content FROM posts WHERE id = ?`, id).
		Scan(&post.ID, &post.Username, &post.Password, &post.Title, &post.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (s sqlQueries) UpdatePost(ctx context.Context, post *models.Post) error {
	_, err := s.q.ExecContext(ctx, `UPDATE posts SET title = ?, content = ? WHERE id = ?`,
		post.Title, post.Content, post.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (s sqlQueries) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (s sqlQueries) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, username, password, title, content
		FROM posts ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
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

func (s sqlQueries) CountPosts(ctx context.Context) (int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}
