// Package versioning implements the versioning step: every published
// file is copied into both latest/ and versions/{ts}/, with a retention
// policy pruning old snapshots.
package versioning

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nova-retail/catalogsync/pkg/objectstore"
)

const (
	maxVersionsPerFile = 3
	retentionDays      = 7
)

// FileManifest records, per published filename, the version timestamps
// currently retained (newest first).
type FileManifest map[string][]int64

// PublishResult is what one versioning tick produced.
type PublishResult struct {
	Manifest FileManifest
	Deleted  []string
}

// Publish copies each file in outputsPrefix into latest/ and
// versions/{ts}/, then applies retention: the 3 newest versions per file
// are always kept, and an older version is deleted only when its
// timestamp is more than 7 days before now.
func Publish(ctx context.Context, store objectstore.Store, outputsPrefix string, filenames []string, now time.Time, manifest FileManifest) (PublishResult, error) {
	if manifest == nil {
		manifest = FileManifest{}
	}
	ts := now.Unix()

	for _, name := range filenames {
		srcKey := outputsPrefix + "/" + name
		data, err := store.Get(ctx, srcKey)
		if err != nil {
			return PublishResult{}, fmt.Errorf("versioning: read %s: %w", srcKey, err)
		}

		latestKey := "latest/" + name
		if err := store.Put(ctx, latestKey, strings.NewReader(string(data))); err != nil {
			return PublishResult{}, fmt.Errorf("versioning: publish latest %s: %w", name, err)
		}

		versionKey := fmt.Sprintf("versions/%d/%s", ts, name)
		if err := store.Put(ctx, versionKey, strings.NewReader(string(data))); err != nil {
			return PublishResult{}, fmt.Errorf("versioning: publish version %s: %w", versionKey, err)
		}

		manifest[name] = append(manifest[name], ts)
	}

	return ApplyRetention(ctx, store, manifest, now)
}

// ApplyRetention prunes manifest down to the last 3 versions per file,
// plus anything younger than 7 days, deleting the rest from store. It is
// the half of Publish that cmd/version-gc runs standalone, against a
// manifest rebuilt from the object store rather than one carried in a
// run's in-memory state.
func ApplyRetention(ctx context.Context, store objectstore.Store, manifest FileManifest, now time.Time) (PublishResult, error) {
	var deleted []string
	cutoff := now.AddDate(0, 0, -retentionDays).Unix()
	for name, versions := range manifest {
		sort.Sort(sort.Reverse(int64Slice(versions)))
		var keep []int64
		for i, v := range versions {
			if i < maxVersionsPerFile || v >= cutoff {
				keep = append(keep, v)
				continue
			}
			key := fmt.Sprintf("versions/%d/%s", v, name)
			if err := store.Delete(ctx, key); err != nil {
				return PublishResult{}, fmt.Errorf("versioning: delete stale version %s: %w", key, err)
			}
			deleted = append(deleted, key)
		}
		manifest[name] = keep
	}

	return PublishResult{Manifest: manifest, Deleted: deleted}, nil
}

// DiscoverManifest rebuilds a FileManifest by listing every key under
// "versions/", for use by a maintenance process that has no in-memory
// manifest of its own (cmd/version-gc).
func DiscoverManifest(ctx context.Context, store objectstore.Store) (FileManifest, error) {
	keys, err := store.List(ctx, "versions/")
	if err != nil {
		return nil, fmt.Errorf("versioning: list versions: %w", err)
	}
	manifest := FileManifest{}
	for _, key := range keys {
		rest := strings.TrimPrefix(key, "versions/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			continue
		}
		ts, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		manifest[parts[1]] = append(manifest[parts[1]], ts)
	}
	return manifest, nil
}

type int64Slice []int64

func (s int64Slice) Len() int           { return len(s) }
func (s int64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int64Slice) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }

// FormatTimestamp renders a unix timestamp the way manifest keys expect.
func FormatTimestamp(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
