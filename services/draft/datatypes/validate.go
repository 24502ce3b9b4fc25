// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Security limits for request payloads. These are enforced through the
// shared validator rather than ad hoc length checks so every request type
// picks them up by tag.
const (
	// MaxContentBytes caps free-text request fields (briefs, section
	// bodies, replacement text). 64KB covers the largest contract
	// sections seen in practice with generous headroom.
	MaxContentBytes = 64 * 1024

	// MaxPatternBytes caps search patterns. Patterns are matched as
	// literal phrases; anything near this size is a paste error, not a
	// pattern.
	MaxPatternBytes = 1024

	// MaxBatchSize caps the number of fix descriptors in one bulk-fix
	// request. Fixes run strictly sequentially, so the cap bounds worst
	// case request latency.
	MaxBatchSize = 50
)

// draftValidate is the shared validator for all request types in this
// package. Validator instances cache struct metadata, so one package-level
// instance is deliberate.
var draftValidate *validator.Validate

func init() {
	draftValidate = validator.New()

	// maxbytes: free-text field within MaxContentBytes.
	_ = draftValidate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxContentBytes
	})

	// patternbytes: search pattern within MaxPatternBytes.
	_ = draftValidate.RegisterValidation("patternbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPatternBytes
	})
}

// NewID returns a fresh random identifier for documents, snapshots, and
// other service-assigned records.
func NewID() string {
	return uuid.NewString()
}
