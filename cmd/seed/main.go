package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/conduit-hq/conduit/internal/client"
)

var authors = []struct {
	username string
	bio      string
}{
	{"alice", "Writes about distributed systems and coffee"},
	{"bob", "Backend engineer, occasional poet"},
	{"carol", "Learning in public"},
	{"dave", "Ships fast, blogs slow"},
	{"erin", "Security by day, fiction by night"},
}

var articles = []struct {
	title       string
	description string
	tags        []string
}{
	{"How to Train Your Dragon", "Very carefully", []string{"dragons", "training"}},
	{"Consistent Hashing Explained", "Rings, tokens and rebalancing", []string{"distributed", "engineering"}},
	{"A Week Without Notifications", "What happened when I turned it all off", []string{"productivity"}},
	{"Postmortem: The Friday Deploy", "We broke prod and learned a lot", []string{"engineering", "incidents"}},
	{"Why I Still Write Tests First", "An old habit that keeps paying off", []string{"testing", "opinion"}},
	{"Reading Papers as a Practitioner", "Start with the figures", []string{"research"}},
	{"The Case for Boring Technology", "Excitement belongs in the product", []string{"engineering", "opinion"}},
	{"My Home Office Setup in 2026", "Desk, chair, and one very loud cat", []string{"productivity", "gear"}},
}

var comments = []string{
	"Great write-up, thanks for sharing.",
	"I ran into the same issue last month. Your fix is cleaner.",
	"Do you have numbers on this? Would love to see benchmarks.",
	"Strongly disagree with the premise, but well argued.",
	"Bookmarked. This is going straight to the team channel.",
	"What tooling did you use for the diagrams?",
	"This matches my experience almost exactly.",
	"Follow-up post on the failure modes, please!",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Conduit server URL")
	flag.Parse()

	log.Printf("Seeding %s...\n", *baseURL)

	// Register all authors and keep their authenticated clients.
	var clients []*client.Client
	for _, a := range authors {
		c := client.New(*baseURL)
		email := a.username + "@example.com"
		if _, err := c.Register(a.username, email, "password-"+a.username); err != nil {
			log.Fatalf("register %s: %v", a.username, err)
		}
		if _, err := c.UpdateUser(client.UserUpdate{Bio: &a.bio}); err != nil {
			log.Fatalf("set bio for %s: %v", a.username, err)
		}
		log.Printf("✓ Registered %s", a.username)
		clients = append(clients, c)
	}

	// Publish articles from random authors.
	var slugs []string
	for _, art := range articles {
		idx := rand.Intn(len(clients))
		body := fmt.Sprintf("%s\n\nThis is seed content for local development.", art.description)
		created, err := clients[idx].CreateArticle(art.title, art.description, body, art.tags)
		if err != nil {
			log.Printf("✗ Failed to publish %q: %v", art.title, err)
			continue
		}
		slugs = append(slugs, created.Slug)
		log.Printf("✓ Published %q (by %s)", created.Slug, authors[idx].username)

		// Small delay to spread out timestamps
		time.Sleep(50 * time.Millisecond)
	}

	// Comment from random authors, 1-3 comments per article.
	for _, slug := range slugs {
		n := rand.Intn(3) + 1
		for i := 0; i < n; i++ {
			idx := rand.Intn(len(clients))
			text := comments[rand.Intn(len(comments))]
			comment, err := clients[idx].AddComment(slug, text)
			if err != nil {
				log.Printf("✗ Failed to comment on %s: %v", slug, err)
				continue
			}
			log.Printf("✓ Comment #%d on %s (by %s)", comment.ID, slug, authors[idx].username)
		}
	}

	// Everyone follows a couple of authors and favorites a few articles.
	for i, c := range clients {
		for j := range authors {
			if j != i && rand.Float32() < 0.5 {
				if _, err := c.Follow(authors[j].username); err != nil {
					continue
				}
			}
		}
		for _, slug := range slugs {
			if rand.Float32() < 0.4 {
				if _, err := c.Favorite(slug); err != nil {
					continue
				}
			}
		}
	}

	log.Printf("Done: %d authors, %d articles", len(clients), len(slugs))
}
