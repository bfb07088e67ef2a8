// Package cache provides an LRU cache for verified block-file pages.
//
// Entries are keyed by file path and block id and charged by byte size
// against the cache capacity and, optionally, a shared resource.Controller
// memory budget. Cached slices are shared and must be treated as read-only.
package cache
