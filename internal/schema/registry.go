// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package schema loads and caches named JSON Schema documents from a
// directory. Schemas are identified by their file stem, loaded lazily on
// first use, checked against Draft 2020-12, and cached compiled in memory.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/modelfront/gateway/internal/apierror"
)

// idPattern restricts schema ids to file stems that cannot escape the
// schemas directory.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Entry is one loaded schema: the raw document for serving and the compiled
// form for validation.
type Entry struct {
	ID       string
	Raw      map[string]any
	Compiled *jsonschema.Schema
}

// Info is the listing view of a schema.
type Info struct {
	SchemaID    string `json:"schema_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Registry lazily loads schemas from a directory and caches them. Concurrent
// double-load of the same schema is acceptable; the result is idempotent.
type Registry struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Entry
}

// NewRegistry creates a registry over the given directory.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, cache: make(map[string]*Entry)}
}

// List returns the id, title and description of every schema file in the
// directory, sorted by id. Listing does not populate the compiled cache.
func (r *Registry) List() ([]Info, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read schemas dir %s: %w", r.dir, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		info := Info{SchemaID: id}
		if raw, err := r.readRaw(id); err == nil {
			info.Title, _ = raw["title"].(string)
			info.Description, _ = raw["description"].(string)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SchemaID < infos[j].SchemaID })
	return infos, nil
}

// Get returns the schema with the given id, loading and compiling it on
// first use. A missing file maps to schema_not_found; a file that exists but
// does not parse or compile maps to schema_load_failed.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	entry, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return entry, nil
	}

	entry, err := r.load(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[id] = entry
	r.mu.Unlock()
	return entry, nil
}

// Validate checks doc against the named schema.
func (r *Registry) Validate(id string, doc any) error {
	entry, err := r.Get(id)
	if err != nil {
		return err
	}
	return entry.Compiled.Validate(doc)
}

func (r *Registry) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *Registry) readRaw(id string) (map[string]any, error) {
	raw, err := os.ReadFile(r.path(id))
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema %s: top-level value is not an object", id)
	}
	return obj, nil
}

func (r *Registry) load(id string) (*Entry, error) {
	if !idPattern.MatchString(id) {
		return nil, apierror.Newf(apierror.CodeSchemaNotFound, http.StatusNotFound, "schema %q not found", id)
	}
	obj, err := r.readRaw(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apierror.Newf(apierror.CodeSchemaNotFound, http.StatusNotFound, "schema %q not found", id)
		}
		return nil, apierror.Wrap(err, apierror.CodeSchemaLoadFailed, http.StatusInternalServerError,
			fmt.Sprintf("schema %q could not be loaded", id))
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	resource := "schema:///" + id + ".json"
	if err := compiler.AddResource(resource, obj); err != nil {
		return nil, apierror.Wrap(err, apierror.CodeSchemaLoadFailed, http.StatusInternalServerError,
			fmt.Sprintf("schema %q could not be loaded", id))
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, apierror.Wrap(err, apierror.CodeSchemaLoadFailed, http.StatusInternalServerError,
			fmt.Sprintf("schema %q could not be loaded", id))
	}
	return &Entry{ID: id, Raw: obj, Compiled: compiled}, nil
}

// ValidationErrors flattens a jsonschema validation error into the string
// list surfaced in the error envelope's extra.errors.
func ValidationErrors(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	lines := strings.Split(verr.Error(), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, strings.TrimPrefix(ln, "- "))
		}
	}
	return out
}
