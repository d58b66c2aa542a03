// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile compares the local extraction cache with the backups
// held in Zotero and plans transfers that never overwrite either side.
package reconcile

import (
	"sort"

	"github.com/pdiddy/papers/pkg/types"
)

// Placeholder titles for keys with no usable title.
const (
	TitleUnknown     = "(title unknown)"
	TitleNotInZotero = "(not in Zotero)"
)

// KeySet is a set of item keys.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Minus returns the sorted keys of s that are not in other.
func (s KeySet) Minus(other KeySet) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		if !other.Has(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Sorted returns the keys in order.
func (s KeySet) Sorted() []string {
	return s.Minus(nil)
}

// Entry is one row of the cache listing.
type Entry struct {
	Key    string             `json:"key" yaml:"key"`
	Local  bool               `json:"local" yaml:"local"`
	Remote types.RemoteStatus `json:"remote" yaml:"remote"`
	Title  string             `json:"title" yaml:"title"`
}

// Status classifies key: ok when backed up, else no_backup when the parent
// record exists, else no_item.
func Status(key string, backedUp KeySet, titles map[string]string) types.RemoteStatus {
	if backedUp.Has(key) {
		return types.RemoteOK
	}
	if _, ok := titles[key]; ok {
		return types.RemoteNoBackup
	}
	return types.RemoteNoItem
}

// PlanList builds the listing over local ∪ backedUp ∪ keys(titles), sorted
// by key. metaTitle returns the title recorded in a key's local meta.json,
// or "" when there is none; it may be nil. A local meta title wins over
// the Zotero title even when the parent record is gone.
func PlanList(local, backedUp KeySet, titles map[string]string, metaTitle func(key string) string) []Entry {
	all := make(KeySet, len(local)+len(backedUp)+len(titles))
	for k := range local {
		all[k] = struct{}{}
	}
	for k := range backedUp {
		all[k] = struct{}{}
	}
	for k := range titles {
		all[k] = struct{}{}
	}

	entries := make([]Entry, 0, len(all))
	for _, k := range all.Sorted() {
		status := Status(k, backedUp, titles)
		entries = append(entries, Entry{
			Key:    k,
			Local:  local.Has(k),
			Remote: status,
			Title:  resolveTitle(k, status, titles, metaTitle),
		})
	}
	return entries
}

func resolveTitle(key string, status types.RemoteStatus, titles map[string]string, metaTitle func(string) string) string {
	if metaTitle != nil {
		if t := metaTitle(key); t != "" {
			return t
		}
	}
	if t := titles[key]; t != "" {
		return t
	}
	if status == types.RemoteNoItem {
		return TitleNotInZotero
	}
	return TitleUnknown
}

// PlanUpload returns the upload candidates: cached keys without a backup.
// A key that already has a backup is never selected.
func PlanUpload(local, backedUp KeySet) []string {
	return local.Minus(backedUp)
}

// PlanDownload returns the download candidates: backed-up keys not cached
// locally. A key already in the cache is never selected.
func PlanDownload(backedUp, local KeySet) []string {
	return backedUp.Minus(local)
}

// SplitByParent partitions upload candidates into those whose parent record
// exists and those that must be skipped.
func SplitByParent(candidates []string, exists KeySet) (proceed, skip []string) {
	for _, k := range candidates {
		if exists.Has(k) {
			proceed = append(proceed, k)
		} else {
			skip = append(skip, k)
		}
	}
	return proceed, skip
}
