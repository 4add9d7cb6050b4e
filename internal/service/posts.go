// Package service implements the post operations on top of a db.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/BorisDmv/post-api/internal/db"
	"github.com/BorisDmv/post-api/internal/models"
	"github.com/BorisDmv/post-api/internal/password"
)

// PageSize is the number of summaries in one listing page.
const PageSize = 10

var (
	ErrPostNotFound = errors.New("post not found")
	// ErrNullPostID means the store handed back a post without an id.
	// It signals a persistence bug and is never retried.
	ErrNullPostID  = errors.New("post id is null")
	ErrInvalidPage = errors.New("page must be 1 or greater")
)

type Page struct {
	Items      []models.PostSummary `json:"data"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
}

type PostService struct {
	store  db.Store
	hasher password.Hasher
	log    *slog.Logger
}

func NewPostService(store db.Store, hasher password.Hasher, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{store: store, hasher: hasher, log: logger.With("component", "posts")}
}

func (s *PostService) Write(ctx context.Context, req models.PostWrite) (int64, error) {
	s.log.InfoContext(ctx, "write post", "username", req.Username)

	digest, err := s.hasher.Hash(req.RawPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	post := &models.Post{
		Username: req.Username,
		Password: digest,
		Title:    req.Title,
		Content:  req.Content,
	}
	err = s.store.WithTx(ctx, func(q db.Queries) error {
		if err := q.InsertPost(ctx, post); err != nil {
			return err
		}
		if post.ID <= 0 {
			return ErrNullPostID
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "post written", "id", post.ID)
	return post.ID, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (models.PostDetail, error) {
	post, err := findPost(ctx, s.store, id)
	if err != nil {
		return models.PostDetail{}, err
	}

	s.log.InfoContext(ctx, "get post", "id", post.ID)
	return models.PostDetail{
		ID:       post.ID,
		Username: post.Username,
		Title:    post.Title,
		Content:  post.Content,
	}, nil
}

// List returns the 1-indexed page of summaries, newest first. A page past the
// end is empty, not an error.
func (s *PostService) List(ctx context.Context, page int) (Page, error) {
	if page < 1 {
		return Page{}, ErrInvalidPage
	}
	s.log.InfoContext(ctx, "list posts", "page", page)

	var posts []models.Post
	// Pages whose offset would overflow int lie past any real table.
	if page <= math.MaxInt/PageSize {
		var err error
		posts, err = s.store.ListPosts(ctx, PageSize, (page-1)*PageSize)
		if err != nil {
			return Page{}, err
		}
	}
	total, err := s.store.CountPosts(ctx)
	if err != nil {
		return Page{}, err
	}

	items := make([]models.PostSummary, 0, len(posts))
	for _, p := range posts {
		if p.ID <= 0 {
			return Page{}, ErrNullPostID
		}
		items = append(items, models.PostSummary{ID: p.ID, Username: p.Username, Title: p.Title})
	}
	return Page{
		Items:      items,
		Page:       page,
		Limit:      PageSize,
		Total:      total,
		TotalPages: (total + PageSize - 1) / PageSize,
	}, nil
}

// Edit replaces both title and content.
func (s *PostService) Edit(ctx context.Context, id int64, req models.PostEdit) (int64, error) {
	s.log.InfoContext(ctx, "edit post", "id", id)

	var editedID int64
	err := s.store.WithTx(ctx, func(q db.Queries) error {
		post, err := findPost(ctx, q, id)
		if err != nil {
			return err
		}
		post.UpdateTitle(req.Title)
		post.UpdateContent(req.Content)
		if err := q.UpdatePost(ctx, post); err != nil {
			return err
		}
		editedID = post.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return editedID, nil
}

func (s *PostService) Delete(ctx context.Context, id int64) error {
	s.log.InfoContext(ctx, "delete post", "id", id)

	return s.store.WithTx(ctx, func(q db.Queries) error {
		post, err := findPost(ctx, q, id)
		if err != nil {
			return err
		}
		return q.DeletePost(ctx, post.ID)
	})
}

func (s *PostService) CheckPassword(ctx context.Context, id int64, rawPassword string) (bool, error) {
	post, err := findPost(ctx, s.store, id)
	if err != nil {
		return false, err
	}

	ok := s.hasher.Verify(rawPassword, post.Password)
	s.log.InfoContext(ctx, "check password", "id", id, "match", ok)
	return ok, nil
}

// Ping reports whether the backing store is reachable.
func (s *PostService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func findPost(ctx context.Context, q db.Queries, id int64) (*models.Post, error) {
	post, err := q.FindPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrPostNotFound, id)
	}
	if post.ID <= 0 {
		return nil, ErrNullPostID
	}
	return post, nil
}
