package http

import (
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/pkg/request"
	"github.com/nekogravitycat/record-console/internal/record"
)

// ListRecordsRequest defines query parameters for listing records.
type ListRecordsRequest struct {
	request.ListParams
}

// CriterionRequest is one search condition. Field is a name or a 1-based position.
type CriterionRequest struct {
	Field    string `json:"field" binding:"required"`
	Operator string `json:"operator" binding:"required"`
	Value    string `json:"value"`
	Value2   string `json:"value2"`
}

func (r CriterionRequest) toCriterion() filter.Criterion {
	return filter.Criterion{
		Field:    r.Field,
		Operator: filter.Operator(r.Operator),
		Value:    r.Value,
		Value2:   r.Value2,
	}
}

// AdvancedSearchRequest carries two or more criteria combined with AND.
// The count is checked by the compiler so that too few criteria get their own reason code.
type AdvancedSearchRequest struct {
	Criteria []CriterionRequest `json:"criteria"`
}

func (r AdvancedSearchRequest) toCriteria() []filter.Criterion {
	out := make([]filter.Criterion, len(r.Criteria))
	for i, c := range r.Criteria {
		out[i] = c.toCriterion()
	}
	return out
}

// CreateRecordRequest holds the new record's field values by name.
type CreateRecordRequest struct {
	Fields map[string]string `json:"fields" binding:"required"`
}

// UpdateFieldRequest changes one field. An empty value clears an optional field.
type UpdateFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// RecordResponse is the shape of a record returned in API responses.
type RecordResponse struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

func NewRecordResponse(r record.Row) RecordResponse {
	fields := r.Fields.Clone()
	return RecordResponse{ID: r.ID, Fields: fields}
}

func newRecordResponses(rows []record.Row) []RecordResponse {
	items := make([]RecordResponse, len(rows))
	for i, r := range rows {
		items[i] = NewRecordResponse(r)
	}
	return items
}

// SearchResponse lists the matching records.
type SearchResponse struct {
	Items []RecordResponse `json:"items"`
	Count int              `json:"count"`
}

// UndoResponse reports the outcome of an undo.
type UndoResponse struct {
	Status      string `json:"status"`
	Kind        string `json:"kind,omitempty"`
	RecordID    int64  `json:"record_id,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func NewUndoResponse(res ledger.Result) UndoResponse {
	resp := UndoResponse{
		Status:      string(res.Status),
		Description: res.Description,
		Reason:      res.Reason,
	}
	if res.Status != ledger.StatusEmpty {
		resp.Kind = res.Action.Kind.String()
		resp.RecordID = res.Action.ID
	}
	return resp
}

// UndoDepthResponse reports how many actions can still be undone.
type UndoDepthResponse struct {
	Depth int `json:"depth"`
}

// FieldResponse describes one catalog field for building menus.
type FieldResponse struct {
	Position   int      `json:"position"`
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Shape      string   `json:"shape"`
	Required   bool     `json:"required"`
	Searchable bool     `json:"searchable"`
	Updatable  bool     `json:"updatable"`
	Values     []string `json:"values,omitempty"`
}

// CatalogResponse lists the visible fields of a family and the search operators.
type CatalogResponse struct {
	Family    string          `json:"family"`
	Fields    []FieldResponse `json:"fields"`
	Operators []string        `json:"operators"`
}

func NewCatalogResponse(family catalog.Family, fields []catalog.Field) CatalogResponse {
	resp := CatalogResponse{Family: string(family)}
	for i, f := range fields {
		if f.Secret {
			continue
		}
		resp.Fields = append(resp.Fields, FieldResponse{
			Position:   i + 1,
			Name:       f.Name,
			Label:      f.Label,
			Shape:      string(f.Shape),
			Required:   f.Required,
			Searchable: f.Searchable,
			Updatable:  f.Updatable,
			Values:     f.Values,
		})
	}
	for _, op := range filter.Operators() {
		resp.Operators = append(resp.Operators, string(op))
	}
	return resp
}
