package workflows

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortField is a sortable dashboard column.
type SortField string

const (
	SortCreatedAt  SortField = "created_at"
	SortAmount     SortField = "amount"
	SortVendorName SortField = "vendor_name"
	SortInvoiceID  SortField = "invoice_id"
	SortStatus     SortField = "status"
)

// SortFields lists the sortable columns in display order.
var SortFields = []SortField{SortCreatedAt, SortAmount, SortVendorName, SortInvoiceID, SortStatus}

// ParseSortField validates a sort column name.
func ParseSortField(raw string) (SortField, error) {
	field := SortField(strings.ToLower(strings.TrimSpace(raw)))
	for _, f := range SortFields {
		if f == field {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortField, raw)
}

// Direction is a sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection validates a sort order.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Ascending:
		return Ascending, nil
	case Descending, "":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, raw)
}

// SortState is the active sort column and direction of a view.
type SortState struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort is newest first.
func DefaultSort() SortState {
	return SortState{Field: SortCreatedAt, Direction: Descending}
}

// Toggle flips direction on the active field; picking a new field starts descending.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field == field {
		if s.Direction == Ascending {
			return SortState{Field: field, Direction: Descending}
		}
		return SortState{Field: field, Direction: Ascending}
	}
	return SortState{Field: field, Direction: Descending}
}

// Sort returns a stably sorted copy of records. The input slice is not modified.
func Sort(records []Record, field SortField, dir Direction) []Record {
	out := slices.Clone(records)
	compare := comparator(field)
	if compare == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		if dir == Ascending {
			return compare(a, b)
		}
		return compare(b, a)
	})
	return out
}

// Filter returns the records in tab, in their original order.
func Filter(records []Record, tab Tab) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if InTab(r, tab) {
			out = append(out, r)
		}
	}
	return out
}

// Apply filters and then sorts.
func Apply(records []Record, tab Tab, state SortState) []Record {
	return Sort(Filter(records, tab), state.Field, state.Direction)
}

func comparator(field SortField) func(a, b Record) int {
	switch field {
	case SortCreatedAt:
		return func(a, b Record) int {
			// absent or unparseable timestamps sort as the earliest instant
			ta, _ := ParseTime(a.CreatedAt)
			tb, _ := ParseTime(b.CreatedAt)
			return ta.Compare(tb)
		}
	case SortAmount:
		return func(a, b Record) int {
			return cmp.Compare(amountOrZero(a.Amount), amountOrZero(b.Amount))
		}
	case SortVendorName:
		return func(a, b Record) int {
			return strings.Compare(strings.ToLower(a.VendorName), strings.ToLower(b.VendorName))
		}
	case SortInvoiceID:
		return func(a, b Record) int {
			return strings.Compare(strings.ToLower(a.InvoiceID), strings.ToLower(b.InvoiceID))
		}
	case SortStatus:
		return func(a, b Record) int {
			return strings.Compare(strings.ToLower(string(a.Status)), strings.ToLower(string(b.Status)))
		}
	}
	return nil
}

func amountOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
