package signage

import "time"

// Display is a physical or virtual screen that renders views.
type Display struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	ClientID    string    `json:"client_id"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is a named grid layout belonging to one display.
//
// Position is 1-based within the (DisplayID, ScreenType) group.
type View struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Columns    int       `json:"columns"`
	Rows       int       `json:"rows"`
	DisplayID  string    `json:"display_id"`
	ScreenType string    `json:"screen_type"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Grid is the rectangle a content slot occupies. The values are opaque
// to this package; they are not checked against the view dimensions.
type Grid struct {
	ColumnStart int `json:"column_start"`
	RowStart    int `json:"row_start"`
	ColumnEnd   int `json:"column_end"`
	RowEnd      int `json:"row_end"`
}

// ContentSlot is a region of a view that renders one component.
type ContentSlot struct {
	ID            string `json:"id"`
	ComponentType string `json:"component_type"`
	ViewID        string `json:"view_id"`
	Grid
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotWithOptions is a content slot together with its persisted options.
type SlotWithOptions struct {
	ContentSlot
	Options OptionMap `json:"options"`
}

// SlotDescriptor is one entry of a desired slot list.
// An empty ID marks a slot to be created.
type SlotDescriptor struct {
	ID            string `json:"id,omitempty"`
	ComponentType string `json:"component_type"`
	Grid
	Options OrderedOptions `json:"options,omitempty"`
}

// DisplayUpdate carries the mutable display fields.
// Nil fields are left unchanged.
type DisplayUpdate struct {
	Name        *string `json:"name,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
}

// ViewInput carries the caller-supplied fields for a new view.
type ViewInput struct {
	Name       string `json:"name"`
	Columns    int    `json:"columns"`
	Rows       int    `json:"rows"`
	DisplayID  string `json:"display_id"`
	ScreenType string `json:"screen_type"`
}

// ViewUpdate carries the fields a view update may change.
// Display, screen type and position are never taken from callers.
type ViewUpdate struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
}

// ReconcileStats counts the storage mutations issued by one reconciliation.
type ReconcileStats struct {
	SlotsCreated   int `json:"slots_created"`
	SlotsUpdated   int `json:"slots_updated"`
	SlotsDeleted   int `json:"slots_deleted"`
	OptionsCreated int `json:"options_created"`
	OptionsUpdated int `json:"options_updated"`
	OptionsDeleted int `json:"options_deleted"`
}

// Counts returns the stats as a flat map, keyed by field name.
func (s ReconcileStats) Counts() map[string]int {
	return map[string]int{
		"slots_created":   s.SlotsCreated,
		"slots_updated":   s.SlotsUpdated,
		"slots_deleted":   s.SlotsDeleted,
		"options_created": s.OptionsCreated,
		"options_updated": s.OptionsUpdated,
		"options_deleted": s.OptionsDeleted,
	}
}
