package signage

import (
	"context"
	"fmt"
	"sort"
)

// OptionReconciler converges the persisted option set of one content slot
// to a desired set.
type OptionReconciler struct {
	options OptionRepository
	logger  Logger
}

// NewOptionReconciler creates an option reconciler over repo.
func NewOptionReconciler(repo OptionRepository, logger Logger) *OptionReconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &OptionReconciler{options: repo, logger: logger}
}

// Reconcile makes the options of slotID equal desired and returns the
// options read back from storage afterwards.
//
// Keys missing from desired are deleted first. Desired keys are then
// created or updated in the order they appear in desired. Updates whose
// value already matches storage are skipped.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - slotID: Content slot owning the options
//   - desired: Desired option set in submitted key order
//
// Returns:
//   - OptionMap: Options persisted for slotID after reconciliation
//   - error: First repository error; earlier steps stay applied
func (r *OptionReconciler) Reconcile(ctx context.Context, slotID string, desired OrderedOptions) (OptionMap, error) {
	var stats ReconcileStats
	return r.reconcile(ctx, slotID, desired, &stats)
}

func (r *OptionReconciler) reconcile(ctx context.Context, slotID string, desired OrderedOptions, stats *ReconcileStats) (OptionMap, error) {
	current, err := r.options.ListForSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("listing options for slot %s: %w", slotID, err)
	}

	// Sorted so deletes are issued in a stable order.
	var removed []string
	for key := range current {
		if !desired.Has(key) {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)

	for _, key := range removed {
		if err := r.options.Delete(ctx, slotID, key); err != nil {
			return nil, fmt.Errorf("deleting option %q of slot %s: %w", key, slotID, err)
		}
		stats.OptionsDeleted++
	}

	for _, opt := range desired {
		existing, ok := current[opt.Key]
		switch {
		case !ok:
			if err := r.options.Create(ctx, slotID, opt.Key, opt.Value); err != nil {
				return nil, fmt.Errorf("creating option %q of slot %s: %w", opt.Key, slotID, err)
			}
			stats.OptionsCreated++
		case !existing.Equal(opt.Value):
			if err := r.options.Update(ctx, slotID, opt.Key, opt.Value); err != nil {
				return nil, fmt.Errorf("updating option %q of slot %s: %w", opt.Key, slotID, err)
			}
			stats.OptionsUpdated++
		}
	}

	persisted, err := r.options.ListForSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("re-reading options for slot %s: %w", slotID, err)
	}

	r.logger.Debug("options reconciled",
		"slot_id", slotID,
		"deleted", len(removed),
		"desired", len(desired),
	)
	return persisted, nil
}
