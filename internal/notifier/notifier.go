package notifier

import (
	"errors"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// Notifier defines the interface for posting event notifications
type Notifier interface {
	// Notify posts notifications for the given events
	Notify(events []*event.Event) error
}

// Multi fans events out to several notifiers. Every notifier is tried and the
// errors are joined.
type Multi []Notifier

// Notify calls each notifier in order
func (m Multi) Notify(events []*event.Event) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Notify(events))
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers enabled in cfg. The result is nil when
// nothing is enabled.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if cfg.Telegram.Enabled() {
		tg, err := NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		m = append(m, tg)
	}
	if cfg.Twitter.Enabled {
		tw, err := NewTwitterNotifier(cfg.Twitter)
		if err != nil {
			return nil, err
		}
		m = append(m, tw)
	}
	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		return m[0], nil
	}
	return m, nil
}

// when renders an event day for people: "Fri, Mar 14 2025" plus "8:00 PM" when timed
func when(d event.Date) string {
	t := d.Time(nil)
	if d.HasTime {
		return t.Format("Mon, Jan 2 2006 3:04 PM")
	}
	return t.Format("Mon, Jan 2 2006")
}
