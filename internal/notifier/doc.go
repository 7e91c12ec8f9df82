// Package notifier announces newly discovered city events.
//
// Notifiers receive the events a pipeline run saw for the first time. The
// dry-run notifier writes the messages it would send to a writer, the Twitter
// notifier posts one status per event and the Telegram notifier sends one HTML
// digest per city to a chat.
package notifier
