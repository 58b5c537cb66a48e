// Package signage provides the display, view and content slot model for
// Signage Core, together with the reconciliation engine that converges
// persisted layouts to declaratively submitted ones.
//
// The model is a strict ownership tree:
//
//	Display ──< View ──< ContentSlot ──< ContentSlotOption
//
// Views are ordered by position within a (display, screen type) group.
// Slots occupy a rectangle of the view's grid and carry a set of scalar
// options keyed by name.
//
// # Reconciliation
//
// Clients submit the complete desired slot list for a view. SlotReconciler
// diffs it against storage and issues the minimal create, update and delete
// calls, delegating each slot's option set to OptionReconciler. Removed
// slots always lose their options before the slot row itself is deleted,
// because the schema does not cascade.
//
// Steps run sequentially. Unless the Service is built with an atomic
// TxRunner, a failure part-way through leaves earlier steps committed and
// the caller receives the error.
//
// # Notifications
//
// The Service publishes display and view changes to an EventSink. Delivery
// is best effort: publish failures are logged and never fail the command
// that triggered them.
//
// # Thread Safety
//
// Service is safe for concurrent use. Reconciliations of the same view are
// serialised; different views reconcile in parallel.
package signage
