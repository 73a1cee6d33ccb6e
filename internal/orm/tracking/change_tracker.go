// Package tracking compares a stored row with a candidate object's column values.
// The skeleton merger uses it to find the columns a write may fill without
// overwriting anything already stored.
package tracking

import (
	"reflect"
	"sort"
	"time"
)

type fieldChange struct {
	oldValue interface{}
	newValue interface{}
}

// ChangeTracker holds the column differences between a stored row and a candidate.
// It belongs to one merge and is not safe for concurrent use.
type ChangeTracker struct {
	original map[string]interface{}
	changes  map[string]fieldChange
}

// NewChangeTracker creates a new change tracker
// original: the row as loaded from the store, NULL columns as nil
// current: the candidate's set column values
func NewChangeTracker(original, current map[string]interface{}) *ChangeTracker {
	ct := &ChangeTracker{
		original: make(map[string]interface{}, len(original)),
		changes:  make(map[string]fieldChange),
	}
	for k, v := range original {
		ct.original[k] = v
	}

	// Columns absent from the candidate, or nil in it, are unknown to it, not cleared.
	for column, newValue := range current {
		if newValue == nil {
			continue
		}
		oldValue := ct.original[column]
		if !valuesEqual(oldValue, newValue) {
			ct.changes[column] = fieldChange{oldValue: oldValue, newValue: newValue}
		}
	}
	return ct
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// FillSet returns the candidate values for NULL stored columns, keyed by column
func (ct *ChangeTracker) FillSet() map[string]interface{} {
	result := make(map[string]interface{})
	for column, change := range ct.changes {
		if change.oldValue == nil {
			result[column] = change.newValue
		}
	}
	return result
}

// Conflicts returns the columns where both sides hold different non-null values, sorted
func (ct *ChangeTracker) Conflicts() []string {
	var columns []string
	for column, change := range ct.changes {
		if change.oldValue != nil {
			columns = append(columns, column)
		}
	}
	sort.Strings(columns)
	return columns
}

// Reset applies the fill set to the stored state and clears what it filled.
// Call it after the fill set has been written.
func (ct *ChangeTracker) Reset() {
	for column, change := range ct.changes {
		if change.oldValue == nil {
			ct.original[column] = change.newValue
			delete(ct.changes, column)
		}
	}
}
