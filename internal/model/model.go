// Package model holds the domain entities shared by the stores and the
// HTTP layer. Entities are plain values; cross-entity links are weak
// references by UserID and are resolved through the owning store.
package model

import "github.com/google/uuid"

// UserID identifies a user. Generated at registration, never reused.
type UserID = uuid.UUID

type User struct {
	ID             UserID
	Username       string
	Email          string
	Salt           int64
	HashedPassword string
	Bio            string
	Image          string
	Following      map[UserID]struct{}
}

// Follows reports whether the user follows the given user id.
func (u User) Follows(id UserID) bool {
	_, ok := u.Following[id]
	return ok
}

// Clone returns a copy that shares no mutable state with the receiver.
func (u User) Clone() User {
	c := u
	c.Following = make(map[UserID]struct{}, len(u.Following))
	for id := range u.Following {
		c.Following[id] = struct{}{}
	}
	return c
}

// Article is keyed by its slug; there is no separate surrogate id.
// Timestamps are preformatted UTC strings with millisecond precision.
type Article struct {
	Slug            string
	Title           string
	Description     string
	Body            string
	TagList         map[string]struct{}
	CreatedAt       string
	UpdatedAt       string
	AuthorID        UserID
	FavoritedBy     map[UserID]struct{}
	Comments        []Comment
	LatestCommentID int
}

// Favorited reports whether the given user has favorited the article.
func (a Article) Favorited(id UserID) bool {
	_, ok := a.FavoritedBy[id]
	return ok
}

// HasTag reports whether the article carries the given tag.
func (a Article) HasTag(tag string) bool {
	_, ok := a.TagList[tag]
	return ok
}

// Clone returns a copy that shares no mutable state with the receiver.
func (a Article) Clone() Article {
	c := a
	c.TagList = make(map[string]struct{}, len(a.TagList))
	for t := range a.TagList {
		c.TagList[t] = struct{}{}
	}
	c.FavoritedBy = make(map[UserID]struct{}, len(a.FavoritedBy))
	for id := range a.FavoritedBy {
		c.FavoritedBy[id] = struct{}{}
	}
	c.Comments = append([]Comment(nil), a.Comments...)
	return c
}

// Comment ids are scoped to one article: strictly increasing, never
// reused after deletion, not globally unique.
type Comment struct {
	ID        int
	Body      string
	CreatedAt string
	UpdatedAt string
	AuthorID  UserID
}
