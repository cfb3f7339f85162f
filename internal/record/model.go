package record

import (
	"errors"
	"maps"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record identifier or unique value already in use")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrRowMismatch      = errors.New("mutation did not affect exactly one record")
	ErrUnknownColumn    = errors.New("column is not in the catalog")
)

// Fields maps catalog field names to values. An empty string is stored as NULL
// and NULL is read back as an empty string.
type Fields map[string]string

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Row is one stored record.
type Row struct {
	ID     int64
	Fields Fields
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	return Row{ID: r.ID, Fields: r.Fields.Clone()}
}

// Page selects a window of an unfiltered listing.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalized() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}
