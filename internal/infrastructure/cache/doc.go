// Package cache provides the parse-result caches used by the command
// normalizer: an in-process expirable LRU and a Redis-backed cache that
// several instances can share.
package cache
