package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BorisDmv/post-api/internal/db"
	"github.com/BorisDmv/post-api/internal/models"
	"github.com/BorisDmv/post-api/internal/password"
)

func newTestService(t *testing.T) (*PostService, db.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "posts.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostService(store, password.NewBcrypt(bcrypt.MinCost), logger), store
}

func writeRequest() models.PostWrite {
	return models.PostWrite{
		Username:    "username",
		RawPassword: "password",
		Title:       "title",
		Content:     "content",
	}
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)
	assert.Positive(t, id)

	count, err := store.CountPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	second, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)
	assert.NotEqual(t, id, second)
}

func TestWrite_StoresDigestNotPlainText(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	post, err := store.FindPost(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "password", post.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(post.Password), []byte("password")))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	detail, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PostDetail{ID: id, Username: "username", Title: "title", Content: "content"}, detail)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 1000)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for n := 1; n <= 15; n++ {
		_, err := svc.Write(ctx, models.PostWrite{
			Username:    fmt.Sprintf("username %d", n),
			RawPassword: fmt.Sprintf("password %d", n),
			Title:       fmt.Sprintf("title %d", n),
			Content:     fmt.Sprintf("content %d", n),
		})
		require.NoError(t, err)
	}

	page1, err := svc.List(ctx, 1)
	require.NoError(t, err)
	page2, err := svc.List(ctx, 2)
	require.NoError(t, err)

	assert.Len(t, page1.Items, 10)
	assert.Len(t, page2.Items, 5)
	assert.Equal(t, 15, page1.Total)
	assert.Equal(t, 2, page1.TotalPages)
	assert.Equal(t, PageSize, page1.Limit)

	all := append(append([]models.PostSummary{}, page1.Items...), page2.Items...)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID)
	}
	assert.Equal(t, "title 15", all[0].Title)
	assert.Equal(t, "username 1", all[14].Username)
}

func TestList_PastLastPageIsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	page, err := svc.List(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.Total)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i := 0; i < 15; i++ {
		_, err := svc.Write(ctx, writeRequest())
		require.NoError(t, err)
	}

	for _, n := range []int{math.MaxInt/PageSize + 1, 1844674407370955163, math.MaxInt} {
		page, err := svc.List(ctx, n)
		require.NoError(t, err)
		assert.Empty(t, page.Items, "page %d", n)
		assert.NotNil(t, page.Items)
		assert.Equal(t, 15, page.Total)
		assert.Equal(t, n, page.Page)
	}
}

func TestList_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for n := 0; n < 3; n++ {
		_, err := svc.Write(ctx, writeRequest())
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, 1)
	require.NoError(t, err)
	second, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestList_InvalidPage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	editedID, err := svc.Edit(ctx, id, models.PostEdit{Title: "update title", Content: "update content"})
	require.NoError(t, err)
	assert.Equal(t, id, editedID)

	post, err := store.FindPost(ctx, editedID)
	require.NoError(t, err)
	assert.Equal(t, "update title", post.Title)
	assert.Equal(t, "update content", post.Content)
	assert.Equal(t, "username", post.Username)
}

func TestEdit_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Edit(context.Background(), 1000, models.PostEdit{Title: "update title", Content: "update content"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id))

	count, err := store.CountPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), 1000)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestCheckPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	id, err := svc.Write(ctx, writeRequest())
	require.NoError(t, err)

	ok, err := svc.CheckPassword(ctx, id, "password")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckPassword(ctx, id, "incorrect")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPassword_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CheckPassword(context.Background(), 1000, "password")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

// idlessStore loses ids on insert and hands back rows without them.
type idlessStore struct {
	db.Store
}

func (idlessStore) InsertPost(context.Context, *models.Post) error { return nil }

func (idlessStore) FindPost(context.Context, int64) (*models.Post, error) {
	return &models.Post{Username: "username", Title: "title"}, nil
}

func (s idlessStore) WithTx(_ context.Context, fn func(q db.Queries) error) error {
	return fn(s)
}

func TestNullPostID(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewPostService(idlessStore{}, password.NewBcrypt(bcrypt.MinCost), logger)

	_, err := svc.Write(ctx, writeRequest())
	assert.ErrorIs(t, err, ErrNullPostID)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNullPostID)

	_, err = svc.Edit(ctx, 1, models.PostEdit{})
	assert.ErrorIs(t, err, ErrNullPostID)

	assert.ErrorIs(t, svc.Delete(ctx, 1), ErrNullPostID)

	_, err = svc.CheckPassword(ctx, 1, "password")
	assert.ErrorIs(t, err, ErrNullPostID)
}
