package signage

import (
	"context"
	"fmt"
)

// SlotReconciler converges the persisted content slots of one view to a
// desired list, reconciling each slot's options along the way.
//
// Steps run one after another and the first failure aborts the rest.
// Whether completed steps survive a failure depends on the Store it runs
// on: over a plain database they stay committed, inside a transaction
// they are rolled back with it.
type SlotReconciler struct {
	slots   SlotRepository
	options OptionRepository
	opts    *OptionReconciler
	logger  Logger
}

// NewSlotReconciler creates a slot reconciler over the slot and option
// repositories of store.
func NewSlotReconciler(store *Store, logger Logger) *SlotReconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SlotReconciler{
		slots:   store.Slots,
		options: store.Options,
		opts:    NewOptionReconciler(store.Options, logger),
		logger:  logger,
	}
}

// Reconcile makes the slots of viewID equal desired.
//
// Persisted slots whose ID is not listed are removed, options first.
// Descriptors without an ID are then created, and descriptors with an ID
// are updated in place. A listed ID that does not exist, or belongs to a
// different view, fails with ErrSlotNotFound. The view ID written to every
// slot is always viewID; slots are never moved between views.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - viewID: View whose slots are converged
//   - desired: Complete desired slot list; entries without an ID are new
//
// Returns:
//   - ReconcileStats: Mutations issued, also on failure
//   - error: ErrSlotNotFound for a foreign or unknown ID, otherwise the
//     first repository error (earlier steps stay applied)
func (r *SlotReconciler) Reconcile(ctx context.Context, viewID string, desired []SlotDescriptor) (ReconcileStats, error) {
	var stats ReconcileStats

	current, err := r.slots.ListByView(ctx, viewID)
	if err != nil {
		return stats, fmt.Errorf("listing slots for view %s: %w", viewID, err)
	}

	keep := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		if d.ID != "" {
			keep[d.ID] = struct{}{}
		}
	}

	for _, slot := range current {
		if _, ok := keep[slot.ID]; ok {
			continue
		}
		if err := r.removeSlot(ctx, slot.ID, &stats); err != nil {
			return stats, err
		}
	}

	for _, d := range desired {
		if d.ID != "" {
			continue
		}
		slot := &ContentSlot{
			ComponentType: d.ComponentType,
			ViewID:        viewID,
			Grid:          d.Grid,
		}
		if err := r.slots.Create(ctx, slot); err != nil {
			return stats, fmt.Errorf("creating %s slot in view %s: %w", d.ComponentType, viewID, err)
		}
		stats.SlotsCreated++

		if _, err := r.opts.reconcile(ctx, slot.ID, d.Options, &stats); err != nil {
			return stats, err
		}
	}

	for _, d := range desired {
		if d.ID == "" {
			continue
		}
		if err := r.updateSlot(ctx, viewID, d, &stats); err != nil {
			return stats, err
		}
	}

	r.logger.Debug("content slots reconciled",
		"view_id", viewID,
		"created", stats.SlotsCreated,
		"updated", stats.SlotsUpdated,
		"deleted", stats.SlotsDeleted,
	)
	return stats, nil
}

// removeSlot deletes a slot after all of its options.
func (r *SlotReconciler) removeSlot(ctx context.Context, slotID string, stats *ReconcileStats) error {
	n, err := r.options.DeleteAllForSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("deleting options of removed slot %s: %w", slotID, err)
	}
	stats.OptionsDeleted += int(n)

	if err := r.slots.Delete(ctx, slotID); err != nil {
		return fmt.Errorf("deleting slot %s: %w", slotID, err)
	}
	stats.SlotsDeleted++
	return nil
}

// updateSlot rewrites an existing slot from its descriptor and reconciles
// its options.
func (r *SlotReconciler) updateSlot(ctx context.Context, viewID string, d SlotDescriptor, stats *ReconcileStats) error {
	slot, err := r.slots.GetByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("loading slot %s: %w", d.ID, err)
	}
	if slot.ViewID != viewID {
		return fmt.Errorf("slot %s is not part of view %s: %w", d.ID, viewID, ErrSlotNotFound)
	}

	if slot.ComponentType != d.ComponentType || slot.Grid != d.Grid {
		slot.ComponentType = d.ComponentType
		slot.Grid = d.Grid
		slot.ViewID = viewID
		if err := r.slots.Update(ctx, slot); err != nil {
			return fmt.Errorf("updating slot %s: %w", d.ID, err)
		}
		stats.SlotsUpdated++
	}

	if _, err := r.opts.reconcile(ctx, slot.ID, d.Options, stats); err != nil {
		return err
	}
	return nil
}
