// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compileMu sync.Mutex
	compiled  = map[string]*jsonschema.Schema{}
)

// ValidateAgainstFile validates the decoded JSON value v against the
// json-schema document at schemaPath. Compiled schemas are cached by path
// since a splitter run revalidates per-plane metadata against the same
// schema hundreds of times.
func ValidateAgainstFile(schemaPath string, v interface{}) error {
	s, err := compiledSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", schemaPath, err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}

	return nil
}

// ValidateRawAgainstFile decodes raw JSON and validates it against the
// schema at schemaPath.
func ValidateRawAgainstFile(schemaPath string, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return ValidateAgainstFile(schemaPath, v)
}

func compiledSchema(schemaPath string) (*jsonschema.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()

	if s, ok := compiled[schemaPath]; ok {
		return s, nil
	}

	s, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, err
	}

	compiled[schemaPath] = s
	return s, nil
}
