// Package store defines the storage contracts for users and articles and
// the error sentinels shared by their implementations.
package store

import (
	"errors"

	"github.com/conduit-hq/conduit/internal/model"
)

var (
	// ErrNotFound reports an unknown slug, comment, or user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUser reports a username or email that is already taken.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrDuplicateSlug reports a title whose slug is already taken.
	ErrDuplicateSlug = errors.New("slug already exists")
	// ErrLoginFailed reports a bad email/password combination.
	ErrLoginFailed = errors.New("login failed")
)

// UserUpdate carries a partial profile update. Nil fields are left
// untouched; a non-nil Password triggers salt regeneration and a rehash.
type UserUpdate struct {
	Email    *string
	Username *string
	Password *string
	Bio      *string
	Image    *string
}

// ArticleUpdate carries a partial article update. A non-nil Title
// re-derives the slug.
type ArticleUpdate struct {
	Title       *string
	Description *string
	Body        *string
}

// ArticleFilter narrows List results. All set fields must match.
// Limit and Offset are applied after filtering and are never negative.
type ArticleFilter struct {
	Tag         string
	AuthorID    *model.UserID
	FavoritedBy *model.UserID
	Limit       int
	Offset      int
}

// UserStore owns user identity, credentials, profile fields, and the
// follow graph. Every operation is atomic with respect to the
// invariants it protects.
type UserStore interface {
	Create(username, email, password string) (model.User, error)
	Login(email, password string) (model.User, error)
	GetByEmail(email string) (model.User, error)
	GetByUsername(username string) (model.User, error)
	GetByID(id model.UserID) (model.User, error)
	Update(email string, upd UserUpdate) (model.User, error)
	Follow(followerEmail string, target model.UserID) error
	Unfollow(followerEmail string, target model.UserID) error
}

// ArticleStore owns articles, their slugs, tags, favorites, and nested
// comments. Articles are keyed by slug; List returns insertion order.
type ArticleStore interface {
	Create(title, description, body string, tags []string, author model.UserID) (model.Article, error)
	Get(slug string) (model.Article, error)
	Update(slug string, upd ArticleUpdate) (model.Article, error)
	Delete(slug string) bool
	List(f ArticleFilter) []model.Article
	Tags() []string
	Favorite(slug string, user model.UserID) (model.Article, error)
	Unfavorite(slug string, user model.UserID) (model.Article, error)
	AddComment(slug, body string, author model.UserID) (model.Comment, error)
	DeleteComment(slug string, commentID int) bool
	Comments(slug string) ([]model.Comment, error)
}
