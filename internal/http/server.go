// Package httpapp provides the HTTP adapter over the stores and the
// authorization gate. It owns request/response marshaling only; every
// invariant lives in the stores.
package httpapp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/conduit-hq/conduit/internal/auth"
	"github.com/conduit-hq/conduit/internal/config"
	"github.com/conduit-hq/conduit/internal/model"
	"github.com/conduit-hq/conduit/internal/store"
	"github.com/conduit-hq/conduit/internal/token"
)

const defaultPageSize = 20

type Server struct {
	users    store.UserStore
	articles store.ArticleStore
	tokens   *token.Service
	gate     *auth.Gate
	cfg      config.Config
}

func NewServer(users store.UserStore, articles store.ArticleStore, tokens *token.Service, gate *auth.Gate, cfg config.Config) *Server {
	return &Server{users: users, articles: articles, tokens: tokens, gate: gate, cfg: cfg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleAPI(w, r)
		return
	}
	notFound(w)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "users":
		if r.Method == http.MethodPost {
			s.handleRegister(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "users" && segments[1] == "login":
		if r.Method == http.MethodPost {
			s.handleLogin(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "user":
		if r.Method == http.MethodGet {
			s.handleGetCurrentUser(w, r)
			return
		}
		if r.Method == http.MethodPut {
			s.handleUpdateUser(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "profiles":
		if r.Method == http.MethodGet {
			s.handleGetProfile(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "profiles" && segments[2] == "follow":
		if r.Method == http.MethodPost {
			s.handleFollow(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleUnfollow(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "articles":
		if r.Method == http.MethodGet {
			s.handleListArticles(w, r)
			return
		}
		if r.Method == http.MethodPost {
			s.handleCreateArticle(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "articles" && segments[1] == "feed":
		if r.Method == http.MethodGet {
			s.handleFeed(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "articles":
		if r.Method == http.MethodGet {
			s.handleGetArticle(w, r, segments[1])
			return
		}
		if r.Method == http.MethodPut {
			s.handleUpdateArticle(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleDeleteArticle(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "favorite":
		if r.Method == http.MethodPost {
			s.handleFavorite(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleUnfavorite(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "comments":
		if r.Method == http.MethodGet {
			s.handleListComments(w, r, segments[1])
			return
		}
		if r.Method == http.MethodPost {
			s.handleAddComment(w, r, segments[1])
			return
		}
	case len(segments) == 4 && segments[0] == "articles" && segments[2] == "comments":
		if r.Method == http.MethodDelete {
			s.handleDeleteComment(w, r, segments[1], segments[3])
			return
		}
	case len(segments) == 1 && segments[0] == "tags":
		if r.Method == http.MethodGet {
			s.handleGetTags(w, r)
			return
		}
	}

	notFound(w)
}

// ----------------------------------------------------------------------------
// Users
// ----------------------------------------------------------------------------

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	user, err := s.users.Create(req.User.Username, req.User.Email, req.User.Password)
	if err != nil {
		writeUnprocessable(w, "user already exists")
		return
	}
	s.writeUser(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	user, err := s.users.Login(req.User.Email, req.User.Password)
	if err != nil {
		writeUnprocessable(w, "login failed")
		return
	}
	s.writeUser(w, user)
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.writeUser(w, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	updated, err := s.users.Update(user.Email, store.UserUpdate{
		Email:    req.User.Email,
		Username: req.User.Username,
		Password: req.User.Password,
		Bio:      req.User.Bio,
		Image:    req.User.Image,
	})
	if err != nil {
		// The authenticated user has to exist; this is a broken
		// invariant, not a caller error.
		internalError(w)
		return
	}
	s.writeUser(w, updated)
}

// writeUser renders the user body with a freshly issued token.
func (s *Server) writeUser(w http.ResponseWriter, user model.User) {
	tok, err := s.tokens.Issue(user.Email)
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, userBody{User: userDTO{
		Email:    user.Email,
		Token:    tok,
		Username: user.Username,
		Bio:      nullable(user.Bio),
		Image:    nullable(user.Image),
	}})
}

// ----------------------------------------------------------------------------
// Profiles
// ----------------------------------------------------------------------------

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, username string) {
	viewer := s.gate.Optional(r.Header.Get("Authorization"))
	target, err := s.users.GetByUsername(username)
	if err != nil {
		notFound(w)
		return
	}
	following := viewer != nil && viewer.Follows(target.ID)
	writeJSON(w, http.StatusOK, profileBody{Profile: newProfileDTO(target, following)})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, username string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	target, err := s.users.GetByUsername(username)
	if err != nil {
		notFound(w)
		return
	}
	if err := s.users.Follow(user.Email, target.ID); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, profileBody{Profile: newProfileDTO(target, true)})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request, username string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	target, err := s.users.GetByUsername(username)
	if err != nil {
		notFound(w)
		return
	}
	if err := s.users.Unfollow(user.Email, target.ID); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, profileBody{Profile: newProfileDTO(target, false)})
}

// ----------------------------------------------------------------------------
// Articles
// ----------------------------------------------------------------------------

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	viewer := s.gate.Optional(r.Header.Get("Authorization"))
	q := r.URL.Query()

	filter := store.ArticleFilter{
		Tag:    q.Get("tag"),
		Limit:  parseIntDefault(q.Get("limit"), defaultPageSize),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
	// The author filter resolves by email, the favorited filter by
	// username. An unresolvable filter matches nothing.
	if author := q.Get("author"); author != "" {
		u, err := s.users.GetByEmail(author)
		if err != nil {
			writeJSON(w, http.StatusOK, articlesBody{Articles: []articleDTO{}})
			return
		}
		filter.AuthorID = &u.ID
	}
	if favorited := q.Get("favorited"); favorited != "" {
		u, err := s.users.GetByUsername(favorited)
		if err != nil {
			writeJSON(w, http.StatusOK, articlesBody{Articles: []articleDTO{}})
			return
		}
		filter.FavoritedBy = &u.ID
	}

	s.writeArticles(w, s.articles.List(filter), viewer)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := s.articles.List(store.ArticleFilter{
		Limit:  parseIntDefault(q.Get("limit"), defaultPageSize),
		Offset: parseIntDefault(q.Get("offset"), 0),
	})
	var feed []model.Article
	for _, a := range page {
		if user.Follows(a.AuthorID) {
			feed = append(feed, a)
		}
	}
	s.writeArticles(w, feed, &user)
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req createArticleRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	article, err := s.articles.Create(req.Article.Title, req.Article.Description, req.Article.Body, req.Article.TagList, user.ID)
	if err != nil {
		writeUnprocessable(w, "slug already exists")
		return
	}
	writeJSON(w, http.StatusOK, articleBody{
		Article: newArticleDTO(article, false, newProfileDTO(user, false)),
	})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request, slug string) {
	viewer := s.gate.Optional(r.Header.Get("Authorization"))
	article, err := s.articles.Get(slug)
	if err != nil {
		notFound(w)
		return
	}
	s.writeArticle(w, article, viewer)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request, slug string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if _, err := s.articles.Get(slug); err != nil {
		notFound(w)
		return
	}
	var req updateArticleRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	article, err := s.articles.Update(slug, store.ArticleUpdate{
		Title:       req.Article.Title,
		Description: req.Article.Description,
		Body:        req.Article.Body,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return
		}
		writeUnprocessable(w, "slug already exists")
		return
	}
	writeJSON(w, http.StatusOK, articleBody{
		Article: newArticleDTO(article, false, newProfileDTO(user, false)),
	})
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request, slug string) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	if !s.articles.Delete(slug) {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request, slug string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	article, err := s.articles.Favorite(slug, user.ID)
	if err != nil {
		notFound(w)
		return
	}
	s.writeArticle(w, article, &user)
}

func (s *Server) handleUnfavorite(w http.ResponseWriter, r *http.Request, slug string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	article, err := s.articles.Unfavorite(slug, user.ID)
	if err != nil {
		notFound(w)
		return
	}
	s.writeArticle(w, article, &user)
}

func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tagsBody{Tags: s.articles.Tags()})
}

// ----------------------------------------------------------------------------
// Comments
// ----------------------------------------------------------------------------

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request, slug string) {
	viewer := s.gate.Optional(r.Header.Get("Authorization"))
	comments, err := s.articles.Comments(slug)
	if err != nil {
		notFound(w)
		return
	}
	dtos := make([]commentDTO, 0, len(comments))
	for _, c := range comments {
		dto, err := s.commentDTOFor(c, viewer)
		if err != nil {
			internalError(w)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, commentsBody{Comments: dtos})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, slug string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeUnprocessable(w, "invalid request body")
		return
	}
	comment, err := s.articles.AddComment(slug, req.Comment.Body, user.ID)
	if err != nil {
		notFound(w)
		return
	}
	dto, err := s.commentDTOFor(comment, &user)
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, commentBody{Comment: dto})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, slug, idStr string) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeUnprocessable(w, "invalid comment id")
		return
	}
	if !s.articles.DeleteComment(slug, id) {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Rendering helpers
// ----------------------------------------------------------------------------

// profileFor resolves a weak author reference. A dangling id means a
// prior invariant breach, surfaced to the caller as an error.
func (s *Server) profileFor(id model.UserID, viewer *model.User) (profileDTO, error) {
	author, err := s.users.GetByID(id)
	if err != nil {
		return profileDTO{}, err
	}
	following := viewer != nil && viewer.Follows(author.ID)
	return newProfileDTO(author, following), nil
}

func (s *Server) commentDTOFor(c model.Comment, viewer *model.User) (commentDTO, error) {
	author, err := s.profileFor(c.AuthorID, viewer)
	if err != nil {
		return commentDTO{}, err
	}
	return commentDTO{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Body:      c.Body,
		Author:    author,
	}, nil
}

func (s *Server) writeArticle(w http.ResponseWriter, a model.Article, viewer *model.User) {
	author, err := s.profileFor(a.AuthorID, viewer)
	if err != nil {
		internalError(w)
		return
	}
	favorited := viewer != nil && a.Favorited(viewer.ID)
	writeJSON(w, http.StatusOK, articleBody{Article: newArticleDTO(a, favorited, author)})
}

func (s *Server) writeArticles(w http.ResponseWriter, articles []model.Article, viewer *model.User) {
	dtos := make([]articleDTO, 0, len(articles))
	for _, a := range articles {
		author, err := s.profileFor(a.AuthorID, viewer)
		if err != nil {
			internalError(w)
			return
		}
		favorited := viewer != nil && a.Favorited(viewer.ID)
		dtos = append(dtos, newArticleDTO(a, favorited, author))
	}
	writeJSON(w, http.StatusOK, articlesBody{Articles: dtos, ArticlesCount: len(dtos)})
}

// requireUser authenticates the request or writes the rejection: 403
// for a missing or malformed header, 401 for a token that does not
// verify or resolve.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	user, err := s.gate.Required(r.Header.Get("Authorization"))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrAuthenticationRequired) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return model.User{}, false
	}
	return user, true
}

// ----------------------------------------------------------------------------
// Plumbing
// ----------------------------------------------------------------------------

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, newErrorsBody(msgs...))
}

func writeUnprocessable(w http.ResponseWriter, msgs ...string) {
	writeError(w, http.StatusUnprocessableEntity, msgs...)
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
