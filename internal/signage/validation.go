package signage

import (
	"fmt"
	"strings"
)

// Validation limits.
const (
	maxNameLength          = 100
	maxClientIDLength      = 128
	maxDescriptionLength   = 1024
	maxComponentTypeLength = 64
	maxOptionKeyLength     = 128
	maxOptionStringLength  = 4096
	maxOptionsPerSlot      = 100
	maxSlotsPerView        = 256
)

// ValidateName checks that a display or view name is present and bounded.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	return nil
}

// ValidateDisplay validates a Display before persistence.
func ValidateDisplay(d *Display) error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if strings.TrimSpace(d.ClientID) == "" {
		return fmt.Errorf("%w: client_id cannot be empty", ErrValidation)
	}
	if len(d.ClientID) > maxClientIDLength {
		return fmt.Errorf("%w: client_id exceeds %d characters", ErrValidation, maxClientIDLength)
	}
	if d.Description != nil && len(*d.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxDescriptionLength)
	}
	if d.Location != nil && len(*d.Location) > maxNameLength {
		return fmt.Errorf("%w: location exceeds %d characters", ErrValidation, maxNameLength)
	}
	return nil
}

// ValidateViewInput validates the caller-supplied fields of a new view.
func ValidateViewInput(in ViewInput) error {
	if err := ValidateName(in.Name); err != nil {
		return err
	}
	if in.DisplayID == "" {
		return fmt.Errorf("%w: display_id is required", ErrValidation)
	}
	if strings.TrimSpace(in.ScreenType) == "" {
		return fmt.Errorf("%w: screen_type is required", ErrValidation)
	}
	return validateDimensions(in.Columns, in.Rows)
}

// ValidateViewUpdate validates the mutable fields of a view.
func ValidateViewUpdate(u ViewUpdate) error {
	if err := ValidateName(u.Name); err != nil {
		return err
	}
	return validateDimensions(u.Columns, u.Rows)
}

func validateDimensions(columns, rows int) error {
	if columns < 1 {
		return fmt.Errorf("%w: columns must be at least 1", ErrValidation)
	}
	if rows < 1 {
		return fmt.Errorf("%w: rows must be at least 1", ErrValidation)
	}
	return nil
}

// ValidateSlotDescriptors checks a desired slot list as a whole.
// Grid coordinates are not checked against the view dimensions.
func ValidateSlotDescriptors(desired []SlotDescriptor) error {
	if len(desired) > maxSlotsPerView {
		return fmt.Errorf("%w: view exceeds %d content slots", ErrValidation, maxSlotsPerView)
	}

	seen := make(map[string]struct{}, len(desired))
	for i, d := range desired {
		if strings.TrimSpace(d.ComponentType) == "" {
			return fmt.Errorf("%w: slot %d: component_type is required", ErrValidation, i)
		}
		if len(d.ComponentType) > maxComponentTypeLength {
			return fmt.Errorf("%w: slot %d: component_type exceeds %d characters", ErrValidation, i, maxComponentTypeLength)
		}
		if d.ID != "" {
			if _, dup := seen[d.ID]; dup {
				return fmt.Errorf("%w: slot %s listed more than once", ErrValidation, d.ID)
			}
			seen[d.ID] = struct{}{}
		}
		if err := ValidateOptions(d.Options); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// ValidateOptions checks that option keys are present, unique and bounded.
// Value types are not constrained beyond being scalars.
func ValidateOptions(opts OrderedOptions) error {
	if len(opts) > maxOptionsPerSlot {
		return fmt.Errorf("%w: exceeds %d options", ErrValidation, maxOptionsPerSlot)
	}

	seen := make(map[string]struct{}, len(opts))
	for _, opt := range opts {
		if opt.Key == "" {
			return fmt.Errorf("%w: option key cannot be empty", ErrValidation)
		}
		if len(opt.Key) > maxOptionKeyLength {
			return fmt.Errorf("%w: option key exceeds %d characters", ErrValidation, maxOptionKeyLength)
		}
		if _, dup := seen[opt.Key]; dup {
			return fmt.Errorf("%w: duplicate option key %q", ErrValidation, opt.Key)
		}
		seen[opt.Key] = struct{}{}

		if opt.Value.Kind() == OptionString && len(opt.Value.Str()) > maxOptionStringLength {
			return fmt.Errorf("%w: option %q value too long", ErrValidation, opt.Key)
		}
	}
	return nil
}
