package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// TeardownAll deletes every tracked group on the directory side and removes
// its tracking record. Test/reset path: records are removed even when the
// remote group is already gone.
func (e *Engine) TeardownAll(ctx context.Context) (int, error) {
	all, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked groups: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, g := range all {
		if err := e.dir.DeleteGroup(ctx, g.GroupID); err != nil && !isGone(err) {
			errs = append(errs, fmt.Errorf("delete group %s: %w", g.GroupID, err))
			continue
		}
		if err := e.store.Delete(ctx, g.GroupID); err != nil {
			errs = append(errs, fmt.Errorf("delete record %s: %w", g.GroupID, err))
			continue
		}
		removed++
	}

	e.logger.Info("teardown complete", "removed", removed, "failed", len(errs))
	return removed, errors.Join(errs...)
}
