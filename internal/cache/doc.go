// Package cache stores synthesized audio clips so repeated phrases do
// not cost a second API call. Lookups hit an in-memory LRU first and
// fall through to a compressed on-disk store that survives restarts.
package cache
