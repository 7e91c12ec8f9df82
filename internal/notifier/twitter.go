package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

const maxTweetLength = 280

// statusUpdater is the part of the Twitter client the notifier uses
type statusUpdater interface {
	Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, error)
}

type statusService struct {
	client *twitter.Client
}

func (s statusService) Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, error) {
	tweet, _, err := s.client.Statuses.Update(status, params)
	return tweet, err
}

// TwitterNotifier posts events to Twitter
type TwitterNotifier struct {
	statuses statusUpdater
	delay    time.Duration
}

// NewTwitterNotifier creates a Twitter notifier. All four OAuth1 credentials
// are required; they are read from TWITTER_* environment variables by the config loader.
func NewTwitterNotifier(cfg config.TwitterConfig) (*TwitterNotifier, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.AccessToken == "" || cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials")
	}

	oauth := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	httpClient := oauth.Client(oauth1.NoContext, token)

	return &TwitterNotifier{
		statuses: statusService{client: twitter.NewClient(httpClient)},
		delay:    2 * time.Second,
	}, nil
}

// Notify posts one tweet per event
func (n *TwitterNotifier) Notify(events []*event.Event) error {
	for i, evt := range events {
		if _, err := n.statuses.Update(formatTweet(evt), nil); err != nil {
			return fmt.Errorf("failed to post tweet for event %s: %w", evt.ID, err)
		}

		// Rate limiting: wait between tweets
		if i < len(events)-1 && n.delay > 0 {
			time.Sleep(n.delay)
		}
	}
	return nil
}

// formatTweet formats an event as a tweet of at most 280 characters
func formatTweet(evt *event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎟️ New in %s: %s\n", evt.City, evt.Title)
	fmt.Fprintf(&b, "📅 %s\n", when(evt.Date))
	if evt.Venue.Name != "" {
		fmt.Fprintf(&b, "📍 %s\n", evt.Venue.Name)
	}
	if evt.URL != "" {
		fmt.Fprintf(&b, "\n🔗 %s\n", evt.URL)
	}
	if tag := hashtag(evt.City); tag != "" {
		fmt.Fprintf(&b, "\n#%s #Events", tag)
	}

	tweet := b.String()
	if runes := []rune(tweet); len(runes) > maxTweetLength {
		tweet = string(runes[:maxTweetLength-3]) + "..."
	}
	return tweet
}

func hashtag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '\'' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
