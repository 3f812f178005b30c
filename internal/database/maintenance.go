package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeDiskPercent is the floor below which reclaim/VACUUM refuse to run.
const MinFreeDiskPercent = 10.0

// PruneResult reports what a prune pass did (or would do, in dry-run mode).
type PruneResult struct {
	RowsDeleted int64
	DryRun      bool
}

// PrunePriceSnapshots deletes price_snapshots older than cutoff from the
// ProfileCache database. Defaults to dry-run: callers must pass
// dryRun=false to actually delete rows.
func (db *DB) PrunePriceSnapshots(cutoff time.Time, dryRun bool) (PruneResult, error) {
	return db.pruneTable("price_snapshots", "snapshot_ts", cutoff, dryRun)
}

// PruneNewsItems deletes news_items older than cutoff from the
// ProfileStandard database. Defaults to dry-run: callers must pass
// dryRun=false to actually delete rows.
func (db *DB) PruneNewsItems(cutoff time.Time, dryRun bool) (PruneResult, error) {
	return db.pruneTable("news_items", "published_at", cutoff, dryRun)
}

func (db *DB) pruneTable(table, column string, cutoff time.Time, dryRun bool) (PruneResult, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339)

	count, err := db.countOlderThan(table, column, cutoffStr)
	if err != nil {
		return PruneResult{}, err
	}

	result := PruneResult{RowsDeleted: count, DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, column)
	if _, err := db.conn.Exec(query, cutoffStr); err != nil {
		return result, fmt.Errorf("database: prune %s: %w", table, err)
	}
	return result, nil
}

func (db *DB) countOlderThan(table, column, cutoff string) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s < ?`, table, column)
	if err := db.conn.QueryRow(query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("database: count rows older than cutoff in %s: %w", table, err)
	}
	return count, nil
}

// Reclaim runs WALCheckpoint(TRUNCATE) followed by VACUUM to compact the
// store. Refuses to run when free disk space on the volume backing Path()
// is below MinFreeDiskPercent, logging a warning instead of failing silently.
func (db *DB) Reclaim(log zerolog.Logger) error {
	checkPath := db.path
	if strings.HasPrefix(checkPath, "file:") {
		checkPath = "."
	}
	usage, err := disk.Usage(checkPath)
	if err != nil {
		return fmt.Errorf("database: check disk usage: %w", err)
	}
	freePercent := 100 - usage.UsedPercent
	if freePercent < MinFreeDiskPercent {
		log.Warn().
			Float64("free_percent", freePercent).
			Float64("floor_percent", MinFreeDiskPercent).
			Msg("reclaim skipped: free disk space below floor")
		return nil
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}
	return db.Vacuum()
}
