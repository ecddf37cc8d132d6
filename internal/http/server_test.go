package httpapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/conduit-hq/conduit/internal/auth"
	"github.com/conduit-hq/conduit/internal/config"
	"github.com/conduit-hq/conduit/internal/store/memory"
	"github.com/conduit-hq/conduit/internal/token"
)

func newTestServer() *Server {
	users := memory.NewUserStore()
	articles := memory.NewArticleStore()
	tokens := token.NewService("test-secret", "test-issuer")
	gate := auth.NewGate(tokens, users)
	return NewServer(users, articles, tokens, gate, config.Config{})
}

// call runs one request against the handler and decodes the JSON body
// into dest when dest is non-nil.
func call(t *testing.T, s *Server, method, path, authToken, body string, dest any) int {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Token "+authToken)
	}
	resp := httptest.NewRecorder()
	s.ServeHTTP(resp, req)
	if dest != nil && resp.Body.Len() > 0 {
		if err := json.Unmarshal(resp.Body.Bytes(), dest); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, resp.Body.String(), err)
		}
	}
	return resp.Code
}

func register(t *testing.T, s *Server, username, email string) userDTO {
	t.Helper()
	body := `{"user":{"username":"` + username + `","email":"` + email + `","password":"pw"}}`
	var resp userBody
	if code := call(t, s, http.MethodPost, "/api/users", "", body, &resp); code != http.StatusOK {
		t.Fatalf("register %s: status %d", username, code)
	}
	return resp.User
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer()

	u := register(t, s, "alice", "alice@example.com")
	if u.Username != "alice" || u.Email != "alice@example.com" || u.Token == "" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Bio != nil || u.Image != nil {
		t.Fatalf("fresh user has non-null bio/image")
	}

	// Duplicate registration is a validation failure.
	var errResp errorsBody
	body := `{"user":{"username":"alice","email":"alice@example.com","password":"pw"}}`
	if code := call(t, s, http.MethodPost, "/api/users", "", body, &errResp); code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate register: status %d", code)
	}
	if len(errResp.Errors.Body) == 0 {
		t.Fatalf("error body empty")
	}

	var login userBody
	if code := call(t, s, http.MethodPost, "/api/users/login", "", `{"user":{"email":"alice@example.com","password":"pw"}}`, &login); code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
	if login.User.Token == "" {
		t.Fatalf("login returned no token")
	}

	if code := call(t, s, http.MethodPost, "/api/users/login", "", `{"user":{"email":"alice@example.com","password":"wrong"}}`, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("bad login: status %d", code)
	}
}

func TestCurrentUserAuth(t *testing.T) {
	s := newTestServer()
	u := register(t, s, "alice", "alice@example.com")

	var me userBody
	if code := call(t, s, http.MethodGet, "/api/user", u.Token, "", &me); code != http.StatusOK {
		t.Fatalf("current user: status %d", code)
	}
	if me.User.Email != "alice@example.com" {
		t.Fatalf("wrong user: %+v", me.User)
	}

	// No header is 403, a bad token is 401.
	if code := call(t, s, http.MethodGet, "/api/user", "", "", nil); code != http.StatusForbidden {
		t.Fatalf("missing header: status %d", code)
	}
	if code := call(t, s, http.MethodGet, "/api/user", "garbage", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", code)
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer()
	u := register(t, s, "alice", "alice@example.com")

	var updated userBody
	body := `{"user":{"bio":"hello","image":"http://img.example/a.png"}}`
	if code := call(t, s, http.MethodPut, "/api/user", u.Token, body, &updated); code != http.StatusOK {
		t.Fatalf("update: status %d", code)
	}
	if updated.User.Bio == nil || *updated.User.Bio != "hello" {
		t.Fatalf("bio not applied: %+v", updated.User)
	}
	if updated.User.Token == "" {
		t.Fatalf("update returned no token")
	}
}

func TestProfilesAndFollowing(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")
	register(t, s, "bob", "bob@example.com")

	var profile profileBody
	if code := call(t, s, http.MethodGet, "/api/profiles/bob", "", "", &profile); code != http.StatusOK {
		t.Fatalf("profile: status %d", code)
	}
	if profile.Profile.Username != "bob" || profile.Profile.Following {
		t.Fatalf("unexpected profile: %+v", profile.Profile)
	}

	if code := call(t, s, http.MethodGet, "/api/profiles/ghost", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown profile: status %d", code)
	}

	if code := call(t, s, http.MethodPost, "/api/profiles/bob/follow", alice.Token, "", &profile); code != http.StatusOK {
		t.Fatalf("follow: status %d", code)
	}
	if !profile.Profile.Following {
		t.Fatalf("follow not reflected")
	}

	// The viewer's token changes the rendered profile.
	call(t, s, http.MethodGet, "/api/profiles/bob", alice.Token, "", &profile)
	if !profile.Profile.Following {
		t.Fatalf("authenticated profile view not following")
	}
	call(t, s, http.MethodGet, "/api/profiles/bob", "", "", &profile)
	if profile.Profile.Following {
		t.Fatalf("anonymous profile view claims following")
	}

	if code := call(t, s, http.MethodDelete, "/api/profiles/bob/follow", alice.Token, "", &profile); code != http.StatusOK {
		t.Fatalf("unfollow: status %d", code)
	}
	if profile.Profile.Following {
		t.Fatalf("unfollow not reflected")
	}

	if code := call(t, s, http.MethodPost, "/api/profiles/bob/follow", "", "", nil); code != http.StatusForbidden {
		t.Fatalf("anonymous follow: status %d", code)
	}
}

func TestArticleLifecycle(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")

	var created articleBody
	body := `{"article":{"title":"My Title","description":"d","body":"b","tagList":["go","web"]}}`
	if code := call(t, s, http.MethodPost, "/api/articles", alice.Token, body, &created); code != http.StatusOK {
		t.Fatalf("create: status %d", code)
	}
	if created.Article.Slug != "My-Title" {
		t.Fatalf("slug = %q", created.Article.Slug)
	}
	if !reflect.DeepEqual(created.Article.TagList, []string{"go", "web"}) {
		t.Fatalf("tags = %v", created.Article.TagList)
	}
	if created.Article.Author.Username != "alice" {
		t.Fatalf("author = %+v", created.Article.Author)
	}

	// Same slug again is a validation failure.
	if code := call(t, s, http.MethodPost, "/api/articles", alice.Token, body, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate create: status %d", code)
	}

	var fetched articleBody
	if code := call(t, s, http.MethodGet, "/api/articles/My-Title", "", "", &fetched); code != http.StatusOK {
		t.Fatalf("get: status %d", code)
	}
	if fetched.Article.Title != "My Title" {
		t.Fatalf("title = %q", fetched.Article.Title)
	}

	var updated articleBody
	if code := call(t, s, http.MethodPut, "/api/articles/My-Title", alice.Token, `{"article":{"title":"Renamed"}}`, &updated); code != http.StatusOK {
		t.Fatalf("update: status %d", code)
	}
	if updated.Article.Slug != "Renamed" {
		t.Fatalf("slug after rename = %q", updated.Article.Slug)
	}
	if code := call(t, s, http.MethodGet, "/api/articles/My-Title", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("old slug still resolves")
	}

	if code := call(t, s, http.MethodPut, "/api/articles/missing", alice.Token, `{"article":{"body":"x"}}`, nil); code != http.StatusNotFound {
		t.Fatalf("update missing: status %d", code)
	}

	if code := call(t, s, http.MethodDelete, "/api/articles/Renamed", alice.Token, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	if code := call(t, s, http.MethodDelete, "/api/articles/Renamed", alice.Token, "", nil); code != http.StatusNotFound {
		t.Fatalf("second delete: status %d", code)
	}
}

func TestListArticlesFilters(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")
	bob := register(t, s, "bob", "bob@example.com")

	call(t, s, http.MethodPost, "/api/articles", alice.Token, `{"article":{"title":"A1","description":"","body":"","tagList":["go"]}}`, nil)
	call(t, s, http.MethodPost, "/api/articles", bob.Token, `{"article":{"title":"B1","description":"","body":"","tagList":["web"]}}`, nil)
	call(t, s, http.MethodPost, "/api/articles", alice.Token, `{"article":{"title":"A2","description":"","body":"","tagList":["go","web"]}}`, nil)

	var list articlesBody
	if code := call(t, s, http.MethodGet, "/api/articles", "", "", &list); code != http.StatusOK {
		t.Fatalf("list: status %d", code)
	}
	if list.ArticlesCount != 3 {
		t.Fatalf("count = %d", list.ArticlesCount)
	}
	// Oldest first.
	if list.Articles[0].Slug != "A1" || list.Articles[2].Slug != "A2" {
		t.Fatalf("order: %v", slugsOfDTO(list.Articles))
	}

	call(t, s, http.MethodGet, "/api/articles?tag=go", "", "", &list)
	if got := slugsOfDTO(list.Articles); !reflect.DeepEqual(got, []string{"A1", "A2"}) {
		t.Fatalf("tag filter: %v", got)
	}

	// The author filter matches by email.
	call(t, s, http.MethodGet, "/api/articles?author=bob@example.com", "", "", &list)
	if got := slugsOfDTO(list.Articles); !reflect.DeepEqual(got, []string{"B1"}) {
		t.Fatalf("author filter: %v", got)
	}
	call(t, s, http.MethodGet, "/api/articles?author=bob", "", "", &list)
	if list.ArticlesCount != 0 {
		t.Fatalf("author-by-username matched: %v", slugsOfDTO(list.Articles))
	}

	// The favorited filter matches by username.
	call(t, s, http.MethodPost, "/api/articles/B1/favorite", alice.Token, "", nil)
	call(t, s, http.MethodGet, "/api/articles?favorited=alice", "", "", &list)
	if got := slugsOfDTO(list.Articles); !reflect.DeepEqual(got, []string{"B1"}) {
		t.Fatalf("favorited filter: %v", got)
	}

	call(t, s, http.MethodGet, "/api/articles?limit=2&offset=2", "", "", &list)
	if got := slugsOfDTO(list.Articles); !reflect.DeepEqual(got, []string{"A2"}) {
		t.Fatalf("pagination: %v", got)
	}
}

func TestFeed(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")
	bob := register(t, s, "bob", "bob@example.com")
	carol := register(t, s, "carol", "carol@example.com")

	call(t, s, http.MethodPost, "/api/articles", bob.Token, `{"article":{"title":"From Bob","description":"","body":"","tagList":[]}}`, nil)
	call(t, s, http.MethodPost, "/api/articles", carol.Token, `{"article":{"title":"From Carol","description":"","body":"","tagList":[]}}`, nil)

	call(t, s, http.MethodPost, "/api/profiles/bob/follow", alice.Token, "", nil)

	var feed articlesBody
	if code := call(t, s, http.MethodGet, "/api/articles/feed", alice.Token, "", &feed); code != http.StatusOK {
		t.Fatalf("feed: status %d", code)
	}
	if got := slugsOfDTO(feed.Articles); !reflect.DeepEqual(got, []string{"From-Bob"}) {
		t.Fatalf("feed: %v", got)
	}
	if !feed.Articles[0].Author.Following {
		t.Fatalf("feed author not marked following")
	}

	if code := call(t, s, http.MethodGet, "/api/articles/feed", "", "", nil); code != http.StatusForbidden {
		t.Fatalf("anonymous feed: status %d", code)
	}
}

func TestFavoriteRendering(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")
	bob := register(t, s, "bob", "bob@example.com")

	call(t, s, http.MethodPost, "/api/articles", bob.Token, `{"article":{"title":"Post","description":"","body":"","tagList":[]}}`, nil)

	var a articleBody
	if code := call(t, s, http.MethodPost, "/api/articles/Post/favorite", alice.Token, "", &a); code != http.StatusOK {
		t.Fatalf("favorite: status %d", code)
	}
	if !a.Article.Favorited || a.Article.FavoritesCount != 1 {
		t.Fatalf("favorite rendering: %+v", a.Article)
	}

	// Anonymous viewers see the count but not the personal flag.
	call(t, s, http.MethodGet, "/api/articles/Post", "", "", &a)
	if a.Article.Favorited || a.Article.FavoritesCount != 1 {
		t.Fatalf("anonymous rendering: %+v", a.Article)
	}

	if code := call(t, s, http.MethodDelete, "/api/articles/Post/favorite", alice.Token, "", &a); code != http.StatusOK {
		t.Fatalf("unfavorite: status %d", code)
	}
	if a.Article.Favorited || a.Article.FavoritesCount != 0 {
		t.Fatalf("unfavorite rendering: %+v", a.Article)
	}

	if code := call(t, s, http.MethodPost, "/api/articles/missing/favorite", alice.Token, "", nil); code != http.StatusNotFound {
		t.Fatalf("favorite missing: status %d", code)
	}
}

func TestComments(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")
	bob := register(t, s, "bob", "bob@example.com")

	call(t, s, http.MethodPost, "/api/articles", alice.Token, `{"article":{"title":"Post","description":"","body":"","tagList":[]}}`, nil)

	var comment commentBody
	if code := call(t, s, http.MethodPost, "/api/articles/Post/comments", bob.Token, `{"comment":{"body":"nice"}}`, &comment); code != http.StatusOK {
		t.Fatalf("add comment: status %d", code)
	}
	if comment.Comment.ID != 1 || comment.Comment.Body != "nice" || comment.Comment.Author.Username != "bob" {
		t.Fatalf("comment: %+v", comment.Comment)
	}

	var comments commentsBody
	if code := call(t, s, http.MethodGet, "/api/articles/Post/comments", "", "", &comments); code != http.StatusOK {
		t.Fatalf("list comments: status %d", code)
	}
	if len(comments.Comments) != 1 {
		t.Fatalf("comments: %+v", comments.Comments)
	}

	if code := call(t, s, http.MethodDelete, "/api/articles/Post/comments/1", bob.Token, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete comment: status %d", code)
	}
	if code := call(t, s, http.MethodDelete, "/api/articles/Post/comments/1", bob.Token, "", nil); code != http.StatusNotFound {
		t.Fatalf("second delete: status %d", code)
	}
	if code := call(t, s, http.MethodDelete, "/api/articles/Post/comments/abc", bob.Token, "", nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("bad comment id: status %d", code)
	}

	call(t, s, http.MethodGet, "/api/articles/Post/comments", "", "", &comments)
	if len(comments.Comments) != 0 {
		t.Fatalf("comment not removed: %+v", comments.Comments)
	}

	if code := call(t, s, http.MethodGet, "/api/articles/missing/comments", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("comments on missing article: status %d", code)
	}
}

func TestTags(t *testing.T) {
	s := newTestServer()
	alice := register(t, s, "alice", "alice@example.com")

	var tags tagsBody
	if code := call(t, s, http.MethodGet, "/api/tags", "", "", &tags); code != http.StatusOK {
		t.Fatalf("tags: status %d", code)
	}
	if len(tags.Tags) != 0 {
		t.Fatalf("fresh store has tags: %v", tags.Tags)
	}

	call(t, s, http.MethodPost, "/api/articles", alice.Token, `{"article":{"title":"One","description":"","body":"","tagList":["zeta","alpha"]}}`, nil)
	call(t, s, http.MethodGet, "/api/tags", "", "", &tags)
	if !reflect.DeepEqual(tags.Tags, []string{"alpha", "zeta"}) {
		t.Fatalf("tags: %v", tags.Tags)
	}
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer()

	if code := call(t, s, http.MethodGet, "/nope", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("non-api path: status %d", code)
	}
	if code := call(t, s, http.MethodGet, "/api/unknown", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown api path: status %d", code)
	}
	if code := call(t, s, http.MethodDelete, "/api/tags", "", "", nil); code != http.StatusNotFound {
		t.Fatalf("wrong method: status %d", code)
	}
}

func slugsOfDTO(articles []articleDTO) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Slug)
	}
	return out
}
