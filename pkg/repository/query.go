package repository

import (
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
)

// ReadQuery selects what Read fetches: the collection, one entity, the collection
// filtered by query parameters, or one entity with extra query parameters.
type ReadQuery struct {
	id     string
	hasID  bool
	params fetchx.ParamSource
}

// All reads the whole collection.
func All() ReadQuery {
	return ReadQuery{}
}

// ByID reads the entity at {path}/{id}.
func ByID(id string) ReadQuery {
	return ReadQuery{id: id, hasID: true}
}

// ByParams reads the collection with query parameters.
func ByParams(params fetchx.ParamSource) ReadQuery {
	return ReadQuery{params: params}
}

// ByIDAndParams reads the entity at {path}/{id} with query parameters.
func ByIDAndParams(id string, params fetchx.ParamSource) ReadQuery {
	return ReadQuery{id: id, hasID: true, params: params}
}

// ID returns the entity identifier and whether the query targets a single entity.
func (q ReadQuery) ID() (string, bool) {
	return q.id, q.hasID
}

// Params returns the query parameters, or nil.
func (q ReadQuery) Params() fetchx.ParamSource {
	return q.params
}
