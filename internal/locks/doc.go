// Package locks provides per-key in-process mutual exclusion.
//
// The conversation service acquires the mutex for a conversation ID before
// calling the generation backend and appending the resulting turns, so two
// requests racing on the same conversation are applied one after the other
// instead of last-write-wins. Entries are evicted after a TTL once idle,
// keeping the registry bounded by the set of recently active conversations.
package locks
