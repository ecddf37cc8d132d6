// Package client provides a Go client for the Conduit API. It is used
// by the CLI and by the end-to-end tests.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Conduit API client. Token, when set, is sent on every
// request as "Authorization: Token <value>".
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// User mirrors the "user" wire object.
type User struct {
	Email    string  `json:"email"`
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// Profile mirrors the "profile" wire object.
type Profile struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

// Article mirrors the "article" wire object.
type Article struct {
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Body           string   `json:"body"`
	TagList        []string `json:"tagList"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
	Favorited      bool     `json:"favorited"`
	FavoritesCount int      `json:"favoritesCount"`
	Author         Profile  `json:"author"`
}

// Comment mirrors the "comment" wire object.
type Comment struct {
	ID        int     `json:"id"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
	Body      string  `json:"body"`
	Author    Profile `json:"author"`
}

// ArticleUpdate carries optional article fields for Update.
type ArticleUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Body        *string `json:"body,omitempty"`
}

// UserUpdate carries optional profile fields for UpdateUser.
type UserUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// ListOptions narrows ListArticles. Zero values are omitted.
type ListOptions struct {
	Tag       string
	Author    string
	Favorited string
	Limit     int
	Offset    int
}

// Register creates a user and stores its token on the client.
func (c *Client) Register(username, email, password string) (User, error) {
	body := map[string]any{"user": map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}}
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(http.MethodPost, "/api/users", body, &resp); err != nil {
		return User{}, err
	}
	c.Token = resp.User.Token
	return resp.User, nil
}

// Login authenticates and stores the token on the client.
func (c *Client) Login(email, password string) (User, error) {
	body := map[string]any{"user": map[string]string{
		"email":    email,
		"password": password,
	}}
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(http.MethodPost, "/api/users/login", body, &resp); err != nil {
		return User{}, err
	}
	c.Token = resp.User.Token
	return resp.User, nil
}

func (c *Client) CurrentUser() (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(http.MethodGet, "/api/user", nil, &resp)
	return resp.User, err
}

func (c *Client) UpdateUser(upd UserUpdate) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(http.MethodPut, "/api/user", map[string]any{"user": upd}, &resp)
	if err == nil {
		c.Token = resp.User.Token
	}
	return resp.User, err
}

func (c *Client) GetProfile(username string) (Profile, error) {
	var resp struct {
		Profile Profile `json:"profile"`
	}
	err := c.do(http.MethodGet, "/api/profiles/"+url.PathEscape(username), nil, &resp)
	return resp.Profile, err
}

func (c *Client) Follow(username string) (Profile, error) {
	var resp struct {
		Profile Profile `json:"profile"`
	}
	err := c.do(http.MethodPost, "/api/profiles/"+url.PathEscape(username)+"/follow", nil, &resp)
	return resp.Profile, err
}

func (c *Client) Unfollow(username string) (Profile, error) {
	var resp struct {
		Profile Profile `json:"profile"`
	}
	err := c.do(http.MethodDelete, "/api/profiles/"+url.PathEscape(username)+"/follow", nil, &resp)
	return resp.Profile, err
}

func (c *Client) CreateArticle(title, description, body string, tags []string) (Article, error) {
	reqBody := map[string]any{"article": map[string]any{
		"title":       title,
		"description": description,
		"body":        body,
		"tagList":     tags,
	}}
	var resp struct {
		Article Article `json:"article"`
	}
	err := c.do(http.MethodPost, "/api/articles", reqBody, &resp)
	return resp.Article, err
}

func (c *Client) GetArticle(slug string) (Article, error) {
	var resp struct {
		Article Article `json:"article"`
	}
	err := c.do(http.MethodGet, "/api/articles/"+url.PathEscape(slug), nil, &resp)
	return resp.Article, err
}

func (c *Client) UpdateArticle(slug string, upd ArticleUpdate) (Article, error) {
	var resp struct {
		Article Article `json:"article"`
	}
	err := c.do(http.MethodPut, "/api/articles/"+url.PathEscape(slug), map[string]any{"article": upd}, &resp)
	return resp.Article, err
}

func (c *Client) DeleteArticle(slug string) error {
	return c.do(http.MethodDelete, "/api/articles/"+url.PathEscape(slug), nil, nil)
}

func (c *Client) ListArticles(opts ListOptions) ([]Article, error) {
	q := url.Values{}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.Author != "" {
		q.Set("author", opts.Author)
	}
	if opts.Favorited != "" {
		q.Set("favorited", opts.Favorited)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/articles"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Articles []Article `json:"articles"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Articles, err
}

func (c *Client) Feed(limit, offset int) ([]Article, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/articles/feed"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Articles []Article `json:"articles"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Articles, err
}

func (c *Client) Favorite(slug string) (Article, error) {
	var resp struct {
		Article Article `json:"article"`
	}
	err := c.do(http.MethodPost, "/api/articles/"+url.PathEscape(slug)+"/favorite", nil, &resp)
	return resp.Article, err
}

func (c *Client) Unfavorite(slug string) (Article, error) {
	var resp struct {
		Article Article `json:"article"`
	}
	err := c.do(http.MethodDelete, "/api/articles/"+url.PathEscape(slug)+"/favorite", nil, &resp)
	return resp.Article, err
}

func (c *Client) AddComment(slug, body string) (Comment, error) {
	reqBody := map[string]any{"comment": map[string]string{"body": body}}
	var resp struct {
		Comment Comment `json:"comment"`
	}
	err := c.do(http.MethodPost, "/api/articles/"+url.PathEscape(slug)+"/comments", reqBody, &resp)
	return resp.Comment, err
}

func (c *Client) ListComments(slug string) ([]Comment, error) {
	var resp struct {
		Comments []Comment `json:"comments"`
	}
	err := c.do(http.MethodGet, "/api/articles/"+url.PathEscape(slug)+"/comments", nil, &resp)
	return resp.Comments, err
}

func (c *Client) DeleteComment(slug string, id int) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/api/articles/%s/comments/%d", url.PathEscape(slug), id), nil, nil)
}

func (c *Client) Tags() ([]string, error) {
	var resp struct {
		Tags []string `json:"tags"`
	}
	err := c.do(http.MethodGet, "/api/tags", nil, &resp)
	return resp.Tags, err
}

// do runs one request. Error responses carry {"errors":{"body":[...]}};
// the first message becomes the returned error.
func (c *Client) do(method, path string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Token "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		var wire struct {
			Errors struct {
				Body []string `json:"body"`
			} `json:"errors"`
		}
		if json.Unmarshal(data, &wire) == nil && len(wire.Errors.Body) > 0 {
			return errors.New(wire.Errors.Body[0])
		}
		return fmt.Errorf("request failed (%d)", resp.StatusCode)
	}
	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}
