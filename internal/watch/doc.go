// Package watch observes the template and variables files and hands every
// close-after-write event to a single consumer.
//
// A [Backend] owns the OS-level watch handles and translates raw
// notifications into [Event] values. [Run] drains them one at a time, so a
// handler never overlaps with itself. The channel between the two holds at
// most one event; a backend blocks until the consumer has taken the previous
// one.
package watch
