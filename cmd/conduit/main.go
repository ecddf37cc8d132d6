package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/conduit-hq/conduit/internal/auth"
	"github.com/conduit-hq/conduit/internal/client"
	"github.com/conduit-hq/conduit/internal/config"
	httpapp "github.com/conduit-hq/conduit/internal/http"
	"github.com/conduit-hq/conduit/internal/store/memory"
	"github.com/conduit-hq/conduit/internal/token"
)

// CLIConfig holds the CLI client configuration persisted to disk.
type CLIConfig struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println("conduit v0.1.0")
		return
	}

	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "register":
		cmdRegister(args)
	case "login":
		cmdLogin(args)
	case "whoami", "status":
		cmdWhoami(args)
	case "update":
		cmdUpdate(args)
	case "post", "publish":
		cmdPost(args)
	case "articles", "read", "list":
		cmdArticles(args)
	case "article", "show":
		cmdArticle(args)
	case "edit":
		cmdEdit(args)
	case "delete", "rm":
		cmdDelete(args)
	case "comment":
		cmdComment(args)
	case "comments":
		cmdComments(args)
	case "uncomment":
		cmdUncomment(args)
	case "follow":
		cmdFollow(args)
	case "unfollow":
		cmdUnfollow(args)
	case "favorite", "fav":
		cmdFavorite(args)
	case "unfavorite", "unfav":
		cmdUnfavorite(args)
	case "profile":
		cmdProfile(args)
	case "feed":
		cmdFeed(args)
	case "tags":
		cmdTags(args)
	case "use":
		cmdUse(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`conduit - social blogging platform

Usage: conduit <command> [options]

Quick Start:
  conduit register --username alice --email alice@example.com
  conduit post --title "Hello" --description "First post" --body "..."

Account:
  register            Create an account and log in
  login               Log in with email and password
  whoami              Show current account and token status
  update              Update profile fields (bio, image, ...)

Articles:
  post                Publish a new article
  articles            List articles (filter by tag/author/favorited)
  article <slug>      Show a single article
  edit <slug>         Update your article
  delete <slug>       Delete an article
  feed                Articles from authors you follow
  tags                List all tags

Social:
  profile <username>  Show a profile
  follow <username>   Follow an author
  unfollow <username> Unfollow an author
  favorite <slug>     Favorite an article
  unfavorite <slug>   Remove a favorite
  comment             Comment on an article
  comments <slug>     List an article's comments
  uncomment           Delete a comment

Server:
  server              Start the Conduit server (default if no command)
  use <url>           Point the CLI at a different server

Environment Variables (server):
  CONDUIT_ADDR        Listen address (default: :8080)
  CONDUIT_JWT_SECRET  Token signing secret
  CONDUIT_JWT_ISSUER  Token issuer tag`)
}

// ============================================================================
// SERVER
// ============================================================================

func runServer() {
	cfg := config.Load()

	users := memory.NewUserStore()
	articles := memory.NewArticleStore()
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTIssuer)
	gate := auth.NewGate(tokens, users)

	server := httpapp.NewServer(users, articles, tokens, gate, cfg)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("conduit listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")
	// State is memory-resident; nothing to flush.
	_ = httpServer.Close()
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "Username (required)")
	email := fs.String("email", "", "Email (required)")
	password := fs.String("password", "", "Password (required)")
	baseURL := fs.String("url", "http://localhost:8080", "Conduit server URL")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		fail("--username, --email and --password are required")
	}

	c := client.New(strings.TrimSuffix(*baseURL, "/"))
	user, err := c.Register(*username, *email, *password)
	if err != nil {
		fail("%v", err)
	}

	saveConfigOrDie(CLIConfig{
		BaseURL:  c.BaseURL,
		Username: user.Username,
		Email:    user.Email,
		Token:    user.Token,
	})
	ok("Registered and logged in as '%s'", user.Username)
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email (required)")
	password := fs.String("password", "", "Password (required)")
	baseURL := fs.String("url", "", "Conduit server URL (defaults to saved)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fail("--email and --password are required")
	}

	base := *baseURL
	if base == "" {
		if cfg, err := loadCLIConfig(); err == nil {
			base = cfg.BaseURL
		} else {
			base = "http://localhost:8080"
		}
	}

	c := client.New(strings.TrimSuffix(base, "/"))
	user, err := c.Login(*email, *password)
	if err != nil {
		fail("%v", err)
	}

	saveConfigOrDie(CLIConfig{
		BaseURL:  c.BaseURL,
		Username: user.Username,
		Email:    user.Email,
		Token:    user.Token,
	})
	ok("Logged in as '%s'", user.Username)
}

func cmdWhoami(args []string) {
	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Println("Not logged in")
		fmt.Println("\nRun: conduit register --username <name> --email <email> --password <pw>")
		return
	}

	fmt.Printf("User:   %s\n", cfg.Username)
	fmt.Printf("Email:  %s\n", cfg.Email)
	fmt.Printf("Server: %s\n", cfg.BaseURL)

	c := authedClient(cfg)
	if _, err := c.CurrentUser(); err != nil {
		warn("Token no longer accepted: %v", err)
		fmt.Println("\nRun: conduit login")
		return
	}
	ok("Token valid")
}

func cmdUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	email := fs.String("email", "", "New email")
	username := fs.String("username", "", "New username")
	password := fs.String("password", "", "New password")
	bio := fs.String("bio", "", "New bio")
	image := fs.String("image", "", "New image URL")
	fs.Parse(args)

	cfg, c := mustLogin()

	upd := client.UserUpdate{
		Email:    optional(*email),
		Username: optional(*username),
		Password: optional(*password),
		Bio:      optional(*bio),
		Image:    optional(*image),
	}
	user, err := c.UpdateUser(upd)
	if err != nil {
		fail("%v", err)
	}

	cfg.Username = user.Username
	cfg.Email = user.Email
	cfg.Token = user.Token
	saveConfigOrDie(cfg)
	ok("Profile updated")
}

func cmdPost(args []string) {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	title := fs.String("title", "", "Article title (required)")
	description := fs.String("description", "", "Short description")
	body := fs.String("body", "", "Article body (required)")
	tags := fs.String("tags", "", "Comma-separated tags")
	fs.Parse(args)

	if *title == "" || *body == "" {
		fail("--title and --body are required")
	}

	_, c := mustLogin()
	article, err := c.CreateArticle(*title, *description, *body, splitTags(*tags))
	if err != nil {
		fail("%v", err)
	}
	ok("Published: %s", article.Title)
	fmt.Printf("  Slug: %s\n", article.Slug)
}

func cmdArticles(args []string) {
	fs := flag.NewFlagSet("articles", flag.ExitOnError)
	tag := fs.String("tag", "", "Filter by tag")
	author := fs.String("author", "", "Filter by author email")
	favorited := fs.String("favorited", "", "Filter by favoriting username")
	limit := fs.Int("limit", 20, "Number of articles")
	offset := fs.Int("offset", 0, "Offset into the result")
	fs.Parse(args)

	c := anyClient()
	articles, err := c.ListArticles(client.ListOptions{
		Tag:       *tag,
		Author:    *author,
		Favorited: *favorited,
		Limit:     *limit,
		Offset:    *offset,
	})
	if err != nil {
		fail("%v", err)
	}
	printArticleTable(articles)
}

func cmdArticle(args []string) {
	slug := requireArg(args, "slug", "conduit article <slug>")

	c := anyClient()
	article, err := c.GetArticle(slug)
	if err != nil {
		fail("%v", err)
	}

	color.New(color.Bold).Printf("%s\n", article.Title)
	fmt.Printf("  by %s | favorites %d | %s\n", article.Author.Username, article.FavoritesCount, article.CreatedAt)
	if len(article.TagList) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(article.TagList, ", "))
	}
	if article.Description != "" {
		fmt.Printf("\n  %s\n", article.Description)
	}
	fmt.Printf("\n%s\n", article.Body)
}

func cmdEdit(args []string) {
	slug, rest := shiftArg(args)
	if slug == "" {
		fail("Usage: conduit edit <slug> [--title ...] [--description ...] [--body ...]")
	}
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	title := fs.String("title", "", "New title (changes the slug)")
	description := fs.String("description", "", "New description")
	body := fs.String("body", "", "New body")
	fs.Parse(rest)

	_, c := mustLogin()
	article, err := c.UpdateArticle(slug, client.ArticleUpdate{
		Title:       optional(*title),
		Description: optional(*description),
		Body:        optional(*body),
	})
	if err != nil {
		fail("%v", err)
	}
	ok("Updated: %s", article.Slug)
}

func cmdDelete(args []string) {
	slug := requireArg(args, "slug", "conduit delete <slug>")

	_, c := mustLogin()
	if err := c.DeleteArticle(slug); err != nil {
		fail("%v", err)
	}
	ok("Deleted '%s'", slug)
}

func cmdComment(args []string) {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	slug := fs.String("slug", "", "Article slug (required)")
	body := fs.String("body", "", "Comment text (required)")
	fs.Parse(args)

	if *slug == "" || *body == "" {
		fail("--slug and --body are required")
	}

	_, c := mustLogin()
	comment, err := c.AddComment(*slug, *body)
	if err != nil {
		fail("%v", err)
	}
	ok("Commented on '%s' (comment %d)", *slug, comment.ID)
}

func cmdComments(args []string) {
	slug := requireArg(args, "slug", "conduit comments <slug>")

	c := anyClient()
	comments, err := c.ListComments(slug)
	if err != nil {
		fail("%v", err)
	}
	if len(comments) == 0 {
		fmt.Println("No comments")
		return
	}
	for _, comment := range comments {
		fmt.Printf("[%d] %s: %s\n", comment.ID, comment.Author.Username, comment.Body)
	}
}

func cmdUncomment(args []string) {
	fs := flag.NewFlagSet("uncomment", flag.ExitOnError)
	slug := fs.String("slug", "", "Article slug (required)")
	id := fs.Int("id", 0, "Comment id (required)")
	fs.Parse(args)

	if *slug == "" || *id == 0 {
		fail("--slug and --id are required")
	}

	_, c := mustLogin()
	if err := c.DeleteComment(*slug, *id); err != nil {
		fail("%v", err)
	}
	ok("Deleted comment %d on '%s'", *id, *slug)
}

func cmdFollow(args []string) {
	username := requireArg(args, "username", "conduit follow <username>")

	_, c := mustLogin()
	profile, err := c.Follow(username)
	if err != nil {
		fail("%v", err)
	}
	ok("Following '%s'", profile.Username)
}

func cmdUnfollow(args []string) {
	username := requireArg(args, "username", "conduit unfollow <username>")

	_, c := mustLogin()
	profile, err := c.Unfollow(username)
	if err != nil {
		fail("%v", err)
	}
	ok("Unfollowed '%s'", profile.Username)
}

func cmdFavorite(args []string) {
	slug := requireArg(args, "slug", "conduit favorite <slug>")

	_, c := mustLogin()
	article, err := c.Favorite(slug)
	if err != nil {
		fail("%v", err)
	}
	ok("Favorited '%s' (%d favorites)", article.Slug, article.FavoritesCount)
}

func cmdUnfavorite(args []string) {
	slug := requireArg(args, "slug", "conduit unfavorite <slug>")

	_, c := mustLogin()
	article, err := c.Unfavorite(slug)
	if err != nil {
		fail("%v", err)
	}
	ok("Unfavorited '%s' (%d favorites)", article.Slug, article.FavoritesCount)
}

func cmdProfile(args []string) {
	username := requireArg(args, "username", "conduit profile <username>")

	c := anyClient()
	profile, err := c.GetProfile(username)
	if err != nil {
		fail("%v", err)
	}

	color.New(color.Bold).Printf("%s\n", profile.Username)
	if profile.Bio != nil {
		fmt.Printf("  %s\n", *profile.Bio)
	}
	if profile.Following {
		fmt.Println("  (following)")
	}
}

func cmdFeed(args []string) {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of articles")
	offset := fs.Int("offset", 0, "Offset into the result")
	fs.Parse(args)

	_, c := mustLogin()
	articles, err := c.Feed(*limit, *offset)
	if err != nil {
		fail("%v", err)
	}
	printArticleTable(articles)
}

// cmdUse repoints the saved configuration at another server. The token
// stays; it is only honored if both servers share a signing secret.
func cmdUse(args []string) {
	target := requireArg(args, "url", "conduit use <url>")

	cfg, err := loadCLIConfig()
	if err != nil {
		cfg = CLIConfig{}
	}
	cfg.BaseURL = strings.TrimSuffix(target, "/")
	saveConfigOrDie(cfg)
	ok("Using %s", cfg.BaseURL)
}

func cmdTags(args []string) {
	c := anyClient()
	tags, err := c.Tags()
	if err != nil {
		fail("%v", err)
	}
	if len(tags) == 0 {
		fmt.Println("No tags")
		return
	}
	fmt.Println(strings.Join(tags, "\n"))
}

// ============================================================================
// HELPERS
// ============================================================================

func printArticleTable(articles []client.Article) {
	if len(articles) == 0 {
		fmt.Println("No articles")
		return
	}
	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"Slug", "Title", "Author", "Favs", "Tags"})
	for _, a := range articles {
		table.Append([]string{
			a.Slug,
			a.Title,
			a.Author.Username,
			strconv.Itoa(a.FavoritesCount),
			strings.Join(a.TagList, ","),
		})
	}
	table.Render()
}

func conduitDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".conduit")
}

func cliConfigPath() string {
	return filepath.Join(conduitDir(), "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return CLIConfig{}, errors.New("not logged in")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveConfigOrDie(cfg CLIConfig) {
	if err := os.MkdirAll(conduitDir(), 0700); err != nil {
		fail("save config: %v", err)
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(cliConfigPath(), data, 0600); err != nil {
		fail("save config: %v", err)
	}
}

// mustLogin returns a client carrying the saved token, or exits.
func mustLogin() (CLIConfig, *client.Client) {
	cfg, err := loadCLIConfig()
	if err != nil {
		fail("%v - run 'conduit login' first", err)
	}
	if cfg.Token == "" {
		fail("not authenticated - run 'conduit login'")
	}
	return cfg, authedClient(cfg)
}

// anyClient returns an authenticated client when a login is saved, an
// anonymous one otherwise. Read endpoints work either way.
func anyClient() *client.Client {
	cfg, err := loadCLIConfig()
	if err != nil {
		return client.New("http://localhost:8080")
	}
	return authedClient(cfg)
}

func authedClient(cfg CLIConfig) *client.Client {
	c := client.New(cfg.BaseURL)
	c.Token = cfg.Token
	return c
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitTags(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(input, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func requireArg(args []string, name, usage string) string {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fail("missing <%s>\nUsage: %s", name, usage)
	}
	return args[0]
}

func shiftArg(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func ok(format string, args ...any) {
	color.New(color.FgGreen).Printf("✓ "+format+"\n", args...)
}

func warn(format string, args ...any) {
	color.New(color.FgYellow).Printf("⚠ "+format+"\n", args...)
}

func fail(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ "+format+"\n", args...)
	os.Exit(1)
}
