package httpapp

import (
	"sort"

	"github.com/conduit-hq/conduit/internal/model"
)

// Request payloads. Every body is wrapped in a single-key object, so a
// missing wrapper shows up as the zero value and fails validation in
// the handler.

type registerRequest struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

type loginRequest struct {
	User struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

type updateUserRequest struct {
	User struct {
		Email    *string `json:"email"`
		Username *string `json:"username"`
		Password *string `json:"password"`
		Bio      *string `json:"bio"`
		Image    *string `json:"image"`
	} `json:"user"`
}

type createArticleRequest struct {
	Article struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Body        string   `json:"body"`
		TagList     []string `json:"tagList"`
	} `json:"article"`
}

type updateArticleRequest struct {
	Article struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Body        *string `json:"body"`
	} `json:"article"`
}

type addCommentRequest struct {
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
}

// Response payloads.

type userDTO struct {
	Email    string  `json:"email"`
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

type userBody struct {
	User userDTO `json:"user"`
}

type profileDTO struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

type profileBody struct {
	Profile profileDTO `json:"profile"`
}

type articleDTO struct {
	Slug           string     `json:"slug"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Body           string     `json:"body"`
	TagList        []string   `json:"tagList"`
	CreatedAt      string     `json:"createdAt"`
	UpdatedAt      string     `json:"updatedAt"`
	Favorited      bool       `json:"favorited"`
	FavoritesCount int        `json:"favoritesCount"`
	Author         profileDTO `json:"author"`
}

type articleBody struct {
	Article articleDTO `json:"article"`
}

type articlesBody struct {
	Articles      []articleDTO `json:"articles"`
	ArticlesCount int          `json:"articlesCount"`
}

type commentDTO struct {
	ID        int        `json:"id"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
	Body      string     `json:"body"`
	Author    profileDTO `json:"author"`
}

type commentBody struct {
	Comment commentDTO `json:"comment"`
}

type commentsBody struct {
	Comments []commentDTO `json:"comments"`
}

type tagsBody struct {
	Tags []string `json:"tags"`
}

type errorsBody struct {
	Errors struct {
		Body []string `json:"body"`
	} `json:"errors"`
}

func newErrorsBody(msgs ...string) errorsBody {
	var e errorsBody
	e.Errors.Body = msgs
	return e
}

// nullable renders empty optional fields as JSON null, matching the
// wire format of bio and image.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newProfileDTO(u model.User, following bool) profileDTO {
	return profileDTO{
		Username:  u.Username,
		Bio:       nullable(u.Bio),
		Image:     nullable(u.Image),
		Following: following,
	}
}

func newArticleDTO(a model.Article, favorited bool, author profileDTO) articleDTO {
	tags := make([]string, 0, len(a.TagList))
	for t := range a.TagList {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return articleDTO{
		Slug:           a.Slug,
		Title:          a.Title,
		Description:    a.Description,
		Body:           a.Body,
		TagList:        tags,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		Favorited:      favorited,
		FavoritesCount: len(a.FavoritedBy),
		Author:         author,
	}
}
