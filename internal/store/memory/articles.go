package memory

import (
	"regexp"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/conduit-hq/conduit/internal/model"
	"github.com/conduit-hq/conduit/internal/store"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	nonWordRE    = regexp.MustCompile(`[^\w-]`)
)

// Slugify derives the article key from a title: whitespace runs become
// a single hyphen, the result is canonically decomposed, and everything
// that is not a word character or hyphen is stripped. Two titles that
// slugify identically collide.
func Slugify(title string) string {
	s := whitespaceRE.ReplaceAllString(title, "-")
	s = norm.NFD.String(s)
	return nonWordRE.ReplaceAllString(s, "")
}

// ArticleStore keeps all articles in memory, keyed by slug. A slice of
// slugs preserves insertion order for listing; a title change relocates
// the article under the new key and moves it to the end of that order.
type ArticleStore struct {
	mu       sync.Mutex
	articles map[string]model.Article
	order    []string
}

func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]model.Article)}
}

// Create stores a new article under the slug derived from title. It
// fails with ErrDuplicateSlug when that slug is already taken.
func (s *ArticleStore) Create(title, description, body string, tags []string, author model.UserID) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := Slugify(title)
	if _, taken := s.articles[slug]; taken {
		return model.Article{}, store.ErrDuplicateSlug
	}

	ts := timestamp()
	a := model.Article{
		Slug:        slug,
		Title:       title,
		Description: description,
		Body:        body,
		TagList:     make(map[string]struct{}, len(tags)),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		AuthorID:    author,
		FavoritedBy: make(map[model.UserID]struct{}),
	}
	for _, t := range tags {
		a.TagList[t] = struct{}{}
	}
	s.articles[slug] = a
	s.order = append(s.order, slug)
	return a.Clone(), nil
}

func (s *ArticleStore) Get(slug string) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}
	return a.Clone(), nil
}

// Update applies the non-nil fields of upd. A new title re-derives the
// slug; if that slug belongs to a different article the whole update is
// rejected and the original article is left untouched. A successful
// rename removes the old key and reinserts under the new one.
func (s *ArticleStore) Update(slug string, upd store.ArticleUpdate) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.articles[slug]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}

	a := cur.Clone()
	newSlug := slug
	if upd.Title != nil {
		newSlug = Slugify(*upd.Title)
		if _, taken := s.articles[newSlug]; taken && newSlug != slug {
			return model.Article{}, store.ErrDuplicateSlug
		}
		a.Slug = newSlug
		a.Title = *upd.Title
	}
	if upd.Description != nil {
		a.Description = *upd.Description
	}
	if upd.Body != nil {
		a.Body = *upd.Body
	}
	a.UpdatedAt = timestamp()

	if newSlug != slug {
		delete(s.articles, slug)
		s.removeFromOrder(slug)
		s.order = append(s.order, newSlug)
	}
	s.articles[newSlug] = a
	return a.Clone(), nil
}

// Delete reports whether an article was present under slug. Comments
// are destroyed with the article.
func (s *ArticleStore) Delete(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[slug]; !ok {
		return false
	}
	delete(s.articles, slug)
	s.removeFromOrder(slug)
	return true
}

// List returns articles in insertion order. Filters are conjunctive;
// offset and limit apply after filtering, and an offset at or beyond
// the filtered count yields an empty result.
func (s *ArticleStore) List(f store.ArticleFilter) []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Article
	for _, slug := range s.order {
		a := s.articles[slug]
		if f.Tag != "" && !a.HasTag(f.Tag) {
			continue
		}
		if f.AuthorID != nil && a.AuthorID != *f.AuthorID {
			continue
		}
		if f.FavoritedBy != nil && !a.Favorited(*f.FavoritedBy) {
			continue
		}
		matched = append(matched, a)
	}

	if f.Offset >= len(matched) {
		return nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]model.Article, 0, end-f.Offset)
	for _, a := range matched[f.Offset:end] {
		out = append(out, a.Clone())
	}
	return out
}

// Tags returns the distinct tags across all articles, sorted.
func (s *ArticleStore) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{})
	for _, a := range s.articles {
		for t := range a.TagList {
			set[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Favorite marks the article as favorited by user. Favoriting twice is
// a no-op.
func (s *ArticleStore) Favorite(slug string, user model.UserID) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}
	a.FavoritedBy[user] = struct{}{}
	return a.Clone(), nil
}

// Unfavorite removes the user's favorite mark, succeeding even when no
// mark was present.
func (s *ArticleStore) Unfavorite(slug string, user model.UserID) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}
	delete(a.FavoritedBy, user)
	return a.Clone(), nil
}

// AddComment allocates the article's next comment id. Ids grow
// strictly and are never reused, even after deletions.
func (s *ArticleStore) AddComment(slug, body string, author model.UserID) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return model.Comment{}, store.ErrNotFound
	}

	ts := timestamp()
	c := model.Comment{
		ID:        a.LatestCommentID + 1,
		Body:      body,
		CreatedAt: ts,
		UpdatedAt: ts,
		AuthorID:  author,
	}
	a.Comments = append(a.Comments, c)
	a.LatestCommentID = c.ID
	s.articles[slug] = a
	return c, nil
}

// DeleteComment reports whether the comment was present.
func (s *ArticleStore) DeleteComment(slug string, commentID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return false
	}
	for i, c := range a.Comments {
		if c.ID == commentID {
			a.Comments = append(a.Comments[:i], a.Comments[i+1:]...)
			s.articles[slug] = a
			return true
		}
	}
	return false
}

// Comments returns the article's comments in insertion order. An
// unknown slug is an error, distinct from an article with no comments.
func (s *ArticleStore) Comments(slug string) ([]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]model.Comment(nil), a.Comments...), nil
}

// removeFromOrder must be called with the lock held.
func (s *ArticleStore) removeFromOrder(slug string) {
	for i, sl := range s.order {
		if sl == slug {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
