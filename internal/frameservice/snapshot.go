package frameservice

import (
	"context"
	"log"
	"time"

	"stockrobotv1/internal/indicator"
)

// snapshotLoop periodically saves the indicator registry to Redis and SQLite.
func (svc *Service) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(svc.cfg.SnapshotIntervalS) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := indicator.SnapshotRegistry(svc.engine)

			// Save to Redis
			if err := svc.redisRead.WriteSnapshot(ctx, svc.cfg.SnapshotKey, snap); err != nil {
				log.Printf("[frameservice] redis snapshot write error: %v", err)
			}

			// Save to SQLite
			if svc.sqlWriter != nil {
				if err := svc.sqlWriter.SaveSnapshot(snap); err != nil {
					log.Printf("[frameservice] sqlite snapshot write error: %v", err)
				}
			}

			log.Printf("[frameservice] checkpoint saved (%d indicators)", len(snap.Records))
		}
	}
}
