// Command version-gc applies the versioning retention policy standalone,
// outside of any pipeline run: it rebuilds the manifest from whatever
// versions/ the object store currently holds and prunes down to the
// configured retention policy. Intended to run on its own schedule (a
// cron job, a k8s CronJob) independent of catalogsync's own scheduler.
package main

import (
	"context"
	"log"
	"time"

	"github.com/nova-retail/catalogsync/config"
	"github.com/nova-retail/catalogsync/pkg/bootstrap"
	"github.com/nova-retail/catalogsync/pkg/versioning"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := cfg.Logger()

	objStore, err := bootstrap.BuildObjectStore(cfg)
	if err != nil {
		log.Fatalf("build object store: %v", err)
	}

	ctx := context.Background()
	manifest, err := versioning.DiscoverManifest(ctx, objStore)
	if err != nil {
		log.Fatalf("discover manifest: %v", err)
	}

	result, err := versioning.ApplyRetention(ctx, objStore, manifest, time.Now())
	if err != nil {
		log.Fatalf("apply retention: %v", err)
	}

	logger.Info("version_gc_completed", map[string]interface{}{
		"files_seen":       len(manifest),
		"versions_deleted": len(result.Deleted),
	})
}
