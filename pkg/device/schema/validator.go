// Package schema validates command arguments with JSON Schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles JSON Schema documents on first use and keeps them,
// keyed by document text, for the life of the process.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks payload against doc. An empty, null or {} document accepts
// everything.
func (v *Validator) Validate(doc json.RawMessage, payload map[string]any) error {
	switch string(bytes.TrimSpace(doc)) {
	case "", "{}", "null":
		return nil
	}

	sch, err := v.schemaFor(doc)
	if err != nil {
		return err
	}
	return sch.Validate(payload)
}

// Cached reports how many distinct documents have been compiled.
func (v *Validator) Cached() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.compiled)
}

func (v *Validator) schemaFor(doc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(doc)

	v.mu.RLock()
	sch, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return sch, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.compiled[key]; ok {
		return sch, nil
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("command.json", parsed); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	sch, err = c.Compile("command.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.compiled[key] = sch
	return sch, nil
}
