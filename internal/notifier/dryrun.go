package notifier

import (
	"fmt"
	"io"
	"os"

	"github.com/pfrederiksen/city-events/internal/event"
)

// DryRunNotifier prints what would be posted without actually posting
type DryRunNotifier struct {
	w io.Writer
}

// NewDryRunNotifier creates a dry-run notifier writing to w, or stdout when w is nil
func NewDryRunNotifier(w io.Writer) *DryRunNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &DryRunNotifier{w: w}
}

// Notify prints the posts that would be sent
func (n *DryRunNotifier) Notify(events []*event.Event) error {
	for i, evt := range events {
		post := formatTweet(evt)
		if _, err := fmt.Fprintf(n.w, "--- Post %d/%d ---\n%s\n\n(Length: %d characters)\n\n", i+1, len(events), post, len([]rune(post))); err != nil {
			return err
		}
	}
	return nil
}
