/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package schema

import (
	"errors"
	"fmt"
)

// ErrTableNotFound is the cause recorded when a table reports no columns.
var ErrTableNotFound = errors.New("table not found")

// ErrSchemaUnavailable represents a failure to read schema metadata from the store
type ErrSchemaUnavailable struct {
	Msg string
	Err error
}

func (e *ErrSchemaUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("schema unavailable: %s", e.Msg)
	}
	return fmt.Sprintf("schema unavailable: %s: %v", e.Msg, e.Err)
}

func (e *ErrSchemaUnavailable) Unwrap() error {
	return e.Err
}

// IsSchemaUnavailable reports whether err wraps an *ErrSchemaUnavailable.
func IsSchemaUnavailable(err error) bool {
	var target *ErrSchemaUnavailable
	return errors.As(err, &target)
}
