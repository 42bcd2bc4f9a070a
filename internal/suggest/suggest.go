// Package suggest surfaces candidate topics for the input step by reading
// configured RSS/Atom feeds.
package suggest

import (
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 10

// Topic is one suggested generation topic.
type Topic struct {
	Title     string
	Source    string
	URL       string
	Published string // YYYY-MM-DD or empty
}

// FeedConfig is a single feed to poll for suggestions.
type FeedConfig struct {
	URL  string
	Name string
}

// Suggester polls feeds for recent headlines.
type Suggester struct {
	feeds []FeedConfig
}

// New creates a Suggester over the configured feeds.
func New(feeds []FeedConfig) *Suggester {
	return &Suggester{feeds: feeds}
}

// Topics returns recent entries from every configured feed, newest first
// within each feed. Feeds that fail to parse are skipped with a warning.
func (s *Suggester) Topics(daysBack int) []Topic {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	parser := gofeed.NewParser()

	var all []Topic
	for _, fc := range s.feeds {
		name := fc.Name
		if name == "" {
			name = sourceName(fc.URL)
		}

		feed, err := parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("suggest: failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxPerFeed {
				break
			}
			topic := itemTopic(item, name)
			if topic == nil {
				continue
			}
			if withinWindow(topic.Published, cutoff) {
				all = append(all, *topic)
				count++
			}
		}
	}
	return all
}

func itemTopic(item *gofeed.Item, source string) *Topic {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	return &Topic{
		Title:     title,
		Source:    source,
		URL:       item.Link,
		Published: published,
	}
}

func withinWindow(published string, cutoff time.Time) bool {
	if published == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", published)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}
