package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BorisDmv/post-api/internal/middleware"
	"github.com/BorisDmv/post-api/internal/models"
	"github.com/BorisDmv/post-api/internal/service"
)

const maxBodyBytes = 1 << 20

type PostService interface {
	Write(ctx context.Context, req models.PostWrite) (int64, error)
	Get(ctx context.Context, id int64) (models.PostDetail, error)
	List(ctx context.Context, page int) (service.Page, error)
	Edit(ctx context.Context, id int64, req models.PostEdit) (int64, error)
	Delete(ctx context.Context, id int64) error
	CheckPassword(ctx context.Context, id int64, rawPassword string) (bool, error)
}

type Options struct {
	// Tokens, when enabled, makes a successful password check return an
	// edit token.
	Tokens *middleware.EditTokens
	// RequireEditToken guards edit and delete with Tokens.Require.
	RequireEditToken bool
	// CheckLimiter throttles password checks per client IP.
	CheckLimiter *middleware.RateLimiter
	Logger       *slog.Logger
}

type PostsHandler struct {
	posts PostService
	opts  Options
	log   *slog.Logger
}

// writeRequest uses pointers so a missing field can be told apart from an
// empty one.
type writeRequest struct {
	Username    *string `json:"username"`
	RawPassword *string `json:"rawPassword"`
	Title       *string `json:"title"`
	Content     *string `json:"content"`
}

type editRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func NewPostsHandler(posts PostService, opts Options) *PostsHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostsHandler{posts: posts, opts: opts, log: logger}
}

// Routes registers the post endpoints on a router mounted at /posts.
func (h *PostsHandler) Routes(r chi.Router) {
	r.Get("/", h.FirstPage)
	r.Get("/{page}", h.ListPage)
	r.Get("/post/{id}", h.Get)
	r.Post("/post", h.Write)

	check := r.With()
	if h.opts.CheckLimiter != nil {
		check = r.With(h.opts.CheckLimiter.Limit)
	}
	check.Post("/post/check/{id}", h.CheckPassword)

	guarded := r.With()
	if h.opts.RequireEditToken && h.opts.Tokens.Enabled() {
		guarded = r.With(h.opts.Tokens.Require("id"))
	}
	guarded.Patch("/posts/{id}", h.Edit)
	guarded.Delete("/post/{id}", h.Delete)
}

// FirstPage answers with the full page envelope; ListPage only with items.
func (h *PostsHandler) FirstPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.List(r.Context(), 1)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *PostsHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid page")
		return
	}
	page, err := h.posts.List(r.Context(), n)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page.Items)
}

func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

func (h *PostsHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Username == nil || req.RawPassword == nil || req.Title == nil || req.Content == nil {
		respondError(w, http.StatusBadRequest, "username, rawPassword, title and content are required")
		return
	}

	id, err := h.posts.Write(r.Context(), models.PostWrite{
		Username:    *req.Username,
		RawPassword: *req.RawPassword,
		Title:       *req.Title,
		Content:     *req.Content,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.NewIDResponse(id))
}

func (h *PostsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Title == nil || req.Content == nil {
		respondError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	editedID, err := h.posts.Edit(r.Context(), id, models.PostEdit{Title: *req.Title, Content: *req.Content})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewIDResponse(editedID))
}

func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *PostsHandler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		respondError(w, http.StatusBadRequest, "password body required")
		return
	}

	match, err := h.posts.CheckPassword(r.Context(), id, parseRawPassword(body))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !match {
		respondError(w, http.StatusUnauthorized, "incorrect password")
		return
	}
	if !h.opts.Tokens.Enabled() {
		w.WriteHeader(http.StatusOK)
		return
	}
	token, err := h.opts.Tokens.Issue(id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// parseRawPassword accepts plain text, a JSON string, or a JSON object
// carrying rawPassword or password. Any other body, including bare JSON
// literals such as null, is taken verbatim.
func parseRawPassword(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return string(body)
	}
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return string(body)
	}
	var obj struct {
		RawPassword *string `json:"rawPassword"`
		Password    *string `json:"password"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		switch {
		case obj.RawPassword != nil:
			return *obj.RawPassword
		case obj.Password != nil:
			return *obj.Password
		}
	}
	return string(body)
}

func (h *PostsHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		respondError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, service.ErrInvalidPage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNullPostID):
		h.log.ErrorContext(r.Context(), "post without id", "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "post id is null")
	default:
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
