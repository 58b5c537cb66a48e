package signage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Service and reconcilers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsWriter records reconciliation statistics. Writes are fire and forget.
type MetricsWriter interface {
	WriteReconcileMetric(viewID string, counts map[string]int, elapsed time.Duration)
}

// Deps holds the collaborators of a Service.
type Deps struct {
	// Store is used for reads and for every mutation outside reconciliation.
	Store *Store

	// Runner scopes slot and option reconciliation. Defaults to a
	// DirectRunner over Store.
	Runner TxRunner

	// Events receives change notifications. May be nil.
	Events EventSink

	// Metrics receives reconciliation statistics. May be nil.
	Metrics MetricsWriter

	Logger Logger
}

// Service is the entry point for display, view and content slot operations.
//
// Display and view CRUD go straight to the repositories. Slot lists and
// option sets are written through the reconcilers, serialised per view.
// Change notifications are published on a background goroutine and their
// failures are only logged.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	store   *Store
	runner  TxRunner
	events  EventSink
	metrics MetricsWriter
	logger  Logger

	locks   *keyedMutex
	pending sync.WaitGroup
}

// NewService creates a Service from deps. deps.Store is required.
func NewService(deps Deps) *Service {
	s := &Service{
		store:   deps.Store,
		runner:  deps.Runner,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		locks:   newKeyedMutex(),
	}
	if s.runner == nil {
		s.runner = NewDirectRunner(deps.Store)
	}
	if s.events == nil {
		s.events = noopSink{}
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Flush blocks until every notification published so far has been handled.
func (s *Service) Flush() {
	s.pending.Wait()
}

// =============================================================================
// Displays
// =============================================================================

// ListDisplays returns every display.
func (s *Service) ListDisplays(ctx context.Context) ([]Display, error) {
	return s.store.Displays.List(ctx)
}

// GetDisplay returns one display.
func (s *Service) GetDisplay(ctx context.Context, id string) (*Display, error) {
	return s.store.Displays.GetByID(ctx, id)
}

// GetDisplayByClientID returns the display that authenticates with clientID.
func (s *Service) GetDisplayByClientID(ctx context.Context, clientID string) (*Display, error) {
	return s.store.Displays.GetByClientID(ctx, clientID)
}

// CreateDisplay validates and stores a new display, then publishes
// EventDisplayCreated.
func (s *Service) CreateDisplay(ctx context.Context, d *Display) (*Display, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.ClientID = strings.TrimSpace(d.ClientID)
	if err := ValidateDisplay(d); err != nil {
		return nil, err
	}
	if err := s.store.Displays.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("display created", "display_id", d.ID, "name", d.Name)
	s.publishDisplay(ctx, EventDisplayCreated, *d)
	return d, nil
}

// UpdateDisplay applies the non-nil fields of u and publishes
// EventDisplayUpdated.
func (s *Service) UpdateDisplay(ctx context.Context, id string, u DisplayUpdate) (*Display, error) {
	d, err := s.store.Displays.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.Active != nil {
		d.Active = *u.Active
	}
	if u.ClientID != nil {
		d.ClientID = strings.TrimSpace(*u.ClientID)
	}
	if u.Description != nil {
		d.Description = u.Description
	}
	if u.Location != nil {
		d.Location = u.Location
	}

	if err := ValidateDisplay(d); err != nil {
		return nil, err
	}
	if err := s.store.Displays.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("display updated", "display_id", d.ID)
	s.publishDisplay(ctx, EventDisplayUpdated, *d)
	return d, nil
}

// DeleteDisplay removes a display together with its views, their slots
// and their options, and publishes EventDisplayDeleted with the removed
// record.
func (s *Service) DeleteDisplay(ctx context.Context, id string) (*Display, error) {
	d, err := s.store.Displays.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := s.store.Views.ListByDisplay(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing views of display %s: %w", id, err)
	}
	for _, v := range views {
		if err := s.removeView(ctx, v.ID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Displays.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("display deleted", "display_id", id, "views", len(views))
	s.publishDisplay(ctx, EventDisplayDeleted, *d)
	return d, nil
}

// =============================================================================
// Views
// =============================================================================

// ListViews returns every view.
func (s *Service) ListViews(ctx context.Context) ([]View, error) {
	return s.store.Views.List(ctx)
}

// ListViewsForDisplay returns the views of one display.
func (s *Service) ListViewsForDisplay(ctx context.Context, displayID string) ([]View, error) {
	if _, err := s.store.Displays.GetByID(ctx, displayID); err != nil {
		return nil, err
	}
	return s.store.Views.ListByDisplay(ctx, displayID)
}

// GetView returns one view.
func (s *Service) GetView(ctx context.Context, id string) (*View, error) {
	return s.store.Views.GetByID(ctx, id)
}

// CreateView appends a view to the end of its screen-type group: its
// position is the current size of the group plus one. Creations in the
// same group are serialised so positions stay unique within this process.
func (s *Service) CreateView(ctx context.Context, in ViewInput) (*View, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ScreenType = strings.TrimSpace(in.ScreenType)
	if err := ValidateViewInput(in); err != nil {
		return nil, err
	}
	if _, err := s.store.Displays.GetByID(ctx, in.DisplayID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("group:" + in.DisplayID + "/" + in.ScreenType)
	defer unlock()

	count, err := s.store.Views.CountByScreenType(ctx, in.DisplayID, in.ScreenType)
	if err != nil {
		return nil, err
	}

	v := &View{
		Name:       in.Name,
		Columns:    in.Columns,
		Rows:       in.Rows,
		DisplayID:  in.DisplayID,
		ScreenType: in.ScreenType,
		Position:   count + 1,
	}
	if err := s.store.Views.Create(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("view created",
		"view_id", v.ID,
		"display_id", v.DisplayID,
		"screen_type", v.ScreenType,
		"position", v.Position,
	)
	return v, nil
}

// UpdateView changes the name and dimensions of a view. Display, screen
// type and position are kept from storage. A views.changed notification
// for the owning display follows on a best-effort basis.
func (s *Service) UpdateView(ctx context.Context, id string, u ViewUpdate) (*View, error) {
	u.Name = strings.TrimSpace(u.Name)
	if err := ValidateViewUpdate(u); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(viewLockKey(id))
	v, err := s.store.Views.GetByID(ctx, id)
	if err == nil {
		v.Name = u.Name
		v.Columns = u.Columns
		v.Rows = u.Rows
		err = s.store.Views.Update(ctx, v)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("view updated", "view_id", v.ID)
	s.publishViewsChanged(ctx, v.DisplayID)
	return v, nil
}

// DeleteView removes a view with its slots and their options, then
// publishes views.changed for the owning display on a best-effort basis.
// The removed view is returned.
func (s *Service) DeleteView(ctx context.Context, id string) (*View, error) {
	v, err := s.store.Views.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.removeView(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("view deleted", "view_id", id, "display_id", v.DisplayID)
	s.publishViewsChanged(ctx, v.DisplayID)
	return v, nil
}

// removeView deletes a view, its slots and their options under the view lock.
func (s *Service) removeView(ctx context.Context, viewID string) error {
	unlock := s.locks.Lock(viewLockKey(viewID))
	defer unlock()

	return s.runner.Run(ctx, func(ctx context.Context, store *Store) error {
		slots, err := store.Slots.ListByView(ctx, viewID)
		if err != nil {
			return fmt.Errorf("listing slots of view %s: %w", viewID, err)
		}
		for _, slot := range slots {
			if _, err := store.Options.DeleteAllForSlot(ctx, slot.ID); err != nil {
				return fmt.Errorf("deleting options of slot %s: %w", slot.ID, err)
			}
			if err := store.Slots.Delete(ctx, slot.ID); err != nil {
				return fmt.Errorf("deleting slot %s: %w", slot.ID, err)
			}
		}
		return store.Views.Delete(ctx, viewID)
	})
}

// =============================================================================
// Content slots
// =============================================================================

// GetContentSlotsForView returns the slots of a view with their options.
func (s *Service) GetContentSlotsForView(ctx context.Context, viewID string) ([]SlotWithOptions, error) {
	if _, err := s.store.Views.GetByID(ctx, viewID); err != nil {
		return nil, err
	}
	return loadSlots(ctx, s.store, viewID)
}

// UpdateContentSlotsForView reconciles the slots of a view against desired
// and returns the slots read back afterwards, along with the mutation
// counts. Errors from reconciliation are returned to the caller.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - viewID: View to reconcile; serialised with other writes to it
//   - desired: Complete desired slot list with options
//
// Returns:
//   - []SlotWithOptions: Slots of the view read back after reconciliation
//   - ReconcileStats: Slot and option mutations issued
//   - error: ErrViewNotFound, ErrValidation, ErrSlotNotFound, or a storage
//     error (partial unless the runner is atomic)
func (s *Service) UpdateContentSlotsForView(ctx context.Context, viewID string, desired []SlotDescriptor) ([]SlotWithOptions, ReconcileStats, error) {
	if err := ValidateSlotDescriptors(desired); err != nil {
		return nil, ReconcileStats{}, err
	}

	unlock := s.locks.Lock(viewLockKey(viewID))
	defer unlock()

	start := time.Now()
	var (
		stats  ReconcileStats
		result []SlotWithOptions
		view   *View
	)
	err := s.runner.Run(ctx, func(ctx context.Context, store *Store) error {
		var err error
		view, err = store.Views.GetByID(ctx, viewID)
		if err != nil {
			return err
		}

		stats, err = NewSlotReconciler(store, s.logger).Reconcile(ctx, viewID, desired)
		if err != nil {
			return err
		}

		result, err = loadSlots(ctx, store, viewID)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("content slot reconciliation failed",
			"view_id", viewID,
			"error", err,
			"slots_created", stats.SlotsCreated,
			"slots_deleted", stats.SlotsDeleted,
		)
		return nil, stats, err
	}

	s.logger.Info("content slots reconciled",
		"view_id", viewID,
		"slots", len(result),
		"slots_created", stats.SlotsCreated,
		"slots_updated", stats.SlotsUpdated,
		"slots_deleted", stats.SlotsDeleted,
		"duration_ms", elapsed.Milliseconds(),
	)
	if s.metrics != nil {
		s.metrics.WriteReconcileMetric(viewID, stats.Counts(), elapsed)
	}
	s.publishViewsChanged(ctx, view.DisplayID)
	return result, stats, nil
}

// GetOptionsForContentSlot returns the persisted options of a slot.
func (s *Service) GetOptionsForContentSlot(ctx context.Context, slotID string) (OptionMap, error) {
	if _, err := s.store.Slots.GetByID(ctx, slotID); err != nil {
		return nil, err
	}
	return s.store.Options.ListForSlot(ctx, slotID)
}

// SetOptionsForContentSlot reconciles the options of one slot against
// desired and returns the options read back from storage.
func (s *Service) SetOptionsForContentSlot(ctx context.Context, slotID string, desired OrderedOptions) (OptionMap, error) {
	if err := ValidateOptions(desired); err != nil {
		return nil, err
	}

	slot, err := s.store.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(viewLockKey(slot.ViewID))
	defer unlock()

	var result OptionMap
	err = s.runner.Run(ctx, func(ctx context.Context, store *Store) error {
		// The slot may have been removed while waiting for the lock.
		if _, err := store.Slots.GetByID(ctx, slotID); err != nil {
			return err
		}
		var err error
		result, err = NewOptionReconciler(store.Options, s.logger).Reconcile(ctx, slotID, desired)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("content slot options set", "slot_id", slotID, "options", len(result))
	return result, nil
}

// loadSlots reads the slots of a view and the options of each.
func loadSlots(ctx context.Context, store *Store, viewID string) ([]SlotWithOptions, error) {
	slots, err := store.Slots.ListByView(ctx, viewID)
	if err != nil {
		return nil, err
	}

	out := make([]SlotWithOptions, 0, len(slots))
	for _, slot := range slots {
		opts, err := store.Options.ListForSlot(ctx, slot.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SlotWithOptions{ContentSlot: slot, Options: opts})
	}
	return out, nil
}

func viewLockKey(viewID string) string {
	return "view:" + viewID
}

// =============================================================================
// Notifications
// =============================================================================

// publishDisplay publishes a display event carrying d.
func (s *Service) publishDisplay(ctx context.Context, kind EventKind, d Display) {
	s.publish(ctx, kind, func(context.Context) (any, error) {
		return d, nil
	})
}

// publishViewsChanged resolves the display owning a view and publishes
// EventViewsChanged with it.
func (s *Service) publishViewsChanged(ctx context.Context, displayID string) {
	s.publish(ctx, EventViewsChanged, func(ctx context.Context) (any, error) {
		d, err := s.store.Displays.GetByID(ctx, displayID)
		if err != nil {
			return nil, fmt.Errorf("resolving display %s: %w", displayID, err)
		}
		return *d, nil
	})
}

// publish resolves the payload and hands it to the event sink on a new
// goroutine. Any failure, panics included, is logged and dropped.
func (s *Service) publish(ctx context.Context, kind EventKind, payload func(context.Context) (any, error)) {
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification panicked", "event", kind, "panic", r)
			}
		}()

		p, err := payload(ctx)
		if err != nil {
			s.logger.Warn("notification dropped", "event", kind, "error", err)
			return
		}
		if err := s.events.Publish(ctx, kind, p); err != nil {
			s.logger.Warn("notification publish failed", "event", kind, "error", err)
		}
	}()
}
