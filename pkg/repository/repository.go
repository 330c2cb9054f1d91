// Package repository maps CRUD verbs onto a fetchx pipeline for one resource path.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
)

// Static errors for err113 compliance.
var (
	ErrPathRequired    = errors.New("repository path is required")
	ErrIDRequired      = errors.New("resource identifier is required")
	ErrRequesterNeeded = errors.New("repository requires a requester")
)

// Requester runs a request through the pipeline. *fetchx.Service implements it.
type Requester interface {
	Fetch(ctx context.Context, path string, config *fetchx.RequestConfig) (*fetchx.Response, error)
}

// Repository is a stateless CRUD accessor for one resource path. Every method returns
// the response with Data set to the parsed JSON body (nil when the body is empty).
type Repository struct {
	requester Requester
	path      string
}

// New creates a repository for path (e.g., "/users").
func New(requester Requester, path string) (*Repository, error) {
	if requester == nil {
		return nil, ErrRequesterNeeded
	}

	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil, ErrPathRequired
	}

	return &Repository{requester: requester, path: path}, nil
}

// Path returns the collection path.
func (r *Repository) Path() string {
	return r.path
}

// Create posts data to the collection.
func (r *Repository) Create(ctx context.Context, data any) (*fetchx.Response, error) {
	return r.do(ctx, r.path, &fetchx.RequestConfig{Method: http.MethodPost, Body: data})
}

// Read fetches the collection or an entity as selected by query.
func (r *Repository) Read(ctx context.Context, query ReadQuery) (*fetchx.Response, error) {
	path := r.path

	if id, ok := query.ID(); ok {
		entityPath, err := r.entityPath(id)
		if err != nil {
			return nil, err
		}

		path = entityPath
	}

	return r.do(ctx, path, &fetchx.RequestConfig{Method: http.MethodGet, Params: query.Params()})
}

// Patch partially updates the entity id.
func (r *Repository) Patch(ctx context.Context, id string, data any) (*fetchx.Response, error) {
	path, err := r.entityPath(id)
	if err != nil {
		return nil, err
	}

	return r.do(ctx, path, &fetchx.RequestConfig{Method: http.MethodPatch, Body: data})
}

// Put replaces the entity id.
func (r *Repository) Put(ctx context.Context, id string, data any) (*fetchx.Response, error) {
	path, err := r.entityPath(id)
	if err != nil {
		return nil, err
	}

	return r.do(ctx, path, &fetchx.RequestConfig{Method: http.MethodPut, Body: data})
}

// Delete removes the entity id.
func (r *Repository) Delete(ctx context.Context, id string) (*fetchx.Response, error) {
	path, err := r.entityPath(id)
	if err != nil {
		return nil, err
	}

	return r.do(ctx, path, &fetchx.RequestConfig{Method: http.MethodDelete})
}

func (r *Repository) entityPath(id string) (string, error) {
	if id == "" {
		return "", ErrIDRequired
	}

	return r.path + "/" + url.PathEscape(id), nil
}

func (r *Repository) do(ctx context.Context, path string, config *fetchx.RequestConfig) (*fetchx.Response, error) {
	resp, err := r.requester.Fetch(ctx, path, config)
	if err != nil {
		return nil, err
	}

	if err := attachData(resp); err != nil {
		return resp, fmt.Errorf("%s %s: %w", config.Method, path, err)
	}

	return resp, nil
}

// attachData parses the body into resp.Data. Numbers are kept as json.Number so large
// identifiers survive.
func attachData(resp *fetchx.Response) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		resp.Data = nil

		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(resp.Body))
	decoder.UseNumber()

	var data any
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	resp.Data = data

	return nil
}
