package storage

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// GCOptions defines options for garbage collection.
type GCOptions struct {
	// DryRun reports what would be deleted without deleting.
	DryRun bool

	// Namespace restricts GC to one namespace. Empty means all namespaces.
	Namespace string

	// Retention overrides the backend's configured retention policy.
	Retention *RetentionConfig

	// Now is the reference time for age checks. Zero means time.Now.
	Now time.Time
}

// GCResult contains the results of a garbage collection operation.
type GCResult struct {
	RunsDeleted   int
	DeletedRunIDs []string

	// Errors holds per-run deletion failures. GC continues past them.
	Errors []error
}

// GarbageCollect deletes runs that violate the retention policy. Runs that
// are still running are never collected.
func (b *LocalBackend) GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	retention := b.cfg.Retention
	if opts.Retention != nil {
		retention = *opts.Retention
	}

	result := &GCResult{
		DeletedRunIDs: make([]string, 0),
		Errors:        make([]error, 0),
	}
	if !retention.IsEnabled() {
		return result, nil
	}

	namespaces := []string{opts.Namespace}
	if opts.Namespace == "" {
		all, err := b.runStore.namespaces()
		if err != nil {
			return result, err
		}
		namespaces = all
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	for _, ns := range namespaces {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := b.gcNamespace(ctx, ns, retention, now, opts.DryRun, result); err != nil {
			return result, fmt.Errorf("gc namespace %s: %w", ns, err)
		}
	}
	return result, nil
}

func (b *LocalBackend) gcNamespace(ctx context.Context, namespace string, retention RetentionConfig, now time.Time, dryRun bool, result *GCResult) error {
	runs, err := b.runStore.List(ctx, namespace, RunFilter{})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	// Oldest first.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})

	var ageCutoff time.Time
	if retention.MaxAgeDays > 0 {
		ageCutoff = now.AddDate(0, 0, -retention.MaxAgeDays)
	}

	marked := make(map[string]bool)
	var toDelete []string
	var remaining []*RunMetadata
	for _, run := range runs {
		if run.Status == string(StatusRunning) {
			continue
		}
		if retention.MaxAgeDays > 0 && run.StartedAt.Before(ageCutoff) {
			marked[run.ID] = true
			toDelete = append(toDelete, run.ID)
			continue
		}
		remaining = append(remaining, run)
	}

	if retention.MaxRuns > 0 && len(remaining) > retention.MaxRuns {
		for _, run := range remaining[:len(remaining)-retention.MaxRuns] {
			if !marked[run.ID] {
				toDelete = append(toDelete, run.ID)
			}
		}
	}

	for _, runID := range toDelete {
		if dryRun {
			result.DeletedRunIDs = append(result.DeletedRunIDs, runID)
			result.RunsDeleted++
			continue
		}
		if err := b.runStore.Delete(ctx, namespace, runID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("delete run %s: %w", runID, err))
			continue
		}
		result.DeletedRunIDs = append(result.DeletedRunIDs, runID)
		result.RunsDeleted++
	}
	return nil
}
