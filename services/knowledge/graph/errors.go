// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Parameter errors, returned before any traversal begins. "No results"
// is never an error in this package.
var (
	// ErrInvalidQuery indicates a malformed query input, e.g. an empty
	// entity name or file path.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidDepth indicates a traversal depth outside the accepted
	// range.
	ErrInvalidDepth = errors.New("invalid depth")

	// ErrInvalidLimit indicates a result limit outside the accepted
	// range.
	ErrInvalidLimit = errors.New("invalid limit")
)
