package httpapp_test

import (
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/conduit-hq/conduit/internal/auth"
	"github.com/conduit-hq/conduit/internal/client"
	"github.com/conduit-hq/conduit/internal/config"
	httpapp "github.com/conduit-hq/conduit/internal/http"
	"github.com/conduit-hq/conduit/internal/store/memory"
	"github.com/conduit-hq/conduit/internal/token"
)

// startServer boots the full handler on a loopback listener and returns
// its base URL.
func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Config{JWTSecret: "e2e-secret", JWTIssuer: "e2e-issuer"}
	users := memory.NewUserStore()
	articles := memory.NewArticleStore()
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTIssuer)
	gate := auth.NewGate(tokens, users)
	server := httpapp.NewServer(users, articles, tokens, gate, cfg)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = httpServer.Close()
		_ = listener.Close()
	})

	return "http://" + listener.Addr().String()
}

func TestEndToEnd(t *testing.T) {
	baseURL := startServer(t)

	alice := client.New(baseURL)
	if _, err := alice.Register("alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("register alice: %v", err)
	}

	bob := client.New(baseURL)
	if _, err := bob.Register("bob", "bob@example.com", "pw"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	// Alice publishes; the slug is derived from the title.
	article, err := alice.CreateArticle("My Title", "short", "long body", []string{"go"})
	if err != nil {
		t.Fatalf("create article: %v", err)
	}
	if article.Slug != "My-Title" {
		t.Fatalf("slug = %q", article.Slug)
	}

	// Bob follows Alice and sees the article in his feed.
	if _, err := bob.Follow("alice"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	feed, err := bob.Feed(20, 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 1 || feed[0].Slug != "My-Title" {
		t.Fatalf("feed = %+v", feed)
	}
	if !feed[0].Author.Following {
		t.Fatalf("feed author not marked following")
	}

	// Bob favorites and comments.
	favorited, err := bob.Favorite("My-Title")
	if err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if !favorited.Favorited || favorited.FavoritesCount != 1 {
		t.Fatalf("favorite state: %+v", favorited)
	}

	comment, err := bob.AddComment("My-Title", "first!")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if comment.ID != 1 {
		t.Fatalf("comment id = %d", comment.ID)
	}

	comments, err := alice.ListComments("My-Title")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Author.Username != "bob" {
		t.Fatalf("comments = %+v", comments)
	}

	// Deleting the comment leaves the list empty.
	if err := bob.DeleteComment("My-Title", comment.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	comments, err = alice.ListComments("My-Title")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("comments not empty: %+v", comments)
	}

	// The tag registry reflects the published article.
	tags, err := alice.Tags()
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "go" {
		t.Fatalf("tags = %v", tags)
	}

	// Deleting the article removes it and its slug.
	if err := alice.DeleteArticle("My-Title"); err != nil {
		t.Fatalf("delete article: %v", err)
	}
	if _, err := alice.GetArticle("My-Title"); err == nil {
		t.Fatalf("deleted article still resolves")
	}
}

func TestEndToEndProfileUpdate(t *testing.T) {
	baseURL := startServer(t)

	c := client.New(baseURL)
	if _, err := c.Register("carol", "carol@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}

	bio := "backend person"
	newEmail := "carol2@example.com"
	updated, err := c.UpdateUser(client.UserUpdate{Bio: &bio, Email: &newEmail})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != newEmail {
		t.Fatalf("email = %q", updated.Email)
	}

	// The refreshed token carries the new identity; the old email no
	// longer logs in.
	me, err := c.CurrentUser()
	if err != nil {
		t.Fatalf("current user after update: %v", err)
	}
	if me.Email != newEmail {
		t.Fatalf("me = %+v", me)
	}
	if _, err := client.New(baseURL).Login("carol@example.com", "pw"); err == nil {
		t.Fatalf("old email still logs in")
	}
	if _, err := client.New(baseURL).Login(newEmail, "pw"); err != nil {
		t.Fatalf("new email login: %v", err)
	}
}

func TestEndToEndErrorShape(t *testing.T) {
	baseURL := startServer(t)

	c := client.New(baseURL)
	if _, err := c.Register("dave", "dave@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// The duplicate registration surfaces the server's message.
	_, err := client.New(baseURL).Register("dave", "other@example.com", "pw")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("duplicate register error = %v", err)
	}
}
