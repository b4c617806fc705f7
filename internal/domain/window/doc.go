// Package window maintains the bounded context window of each session:
// the most recent turns, oldest dropped first, that accompany the next
// chat request.
package window
