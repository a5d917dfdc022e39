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
package chatdb

import (
	"context"
	"errors"
	"fmt"
)

// ErrQueryExecution represents errors that occur during query execution
type ErrQueryExecution struct {
	Msg string
	Err error
}

// ErrInvalidInput represents errors related to invalid input parameters
type ErrInvalidInput struct {
	Msg string
	Err error
}

// ErrModelUnavailable represents failures of the query generation model
type ErrModelUnavailable struct {
	Msg string
	Err error
}

// ErrTimeout represents timeout errors during operations
type ErrTimeout struct {
	Msg string
	Err error
}

// ErrCancelled represents errors when an operation is cancelled
type ErrCancelled struct {
	Msg string
	Err error
}

func format(kind, msg string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s", kind, msg)
	}
	return fmt.Sprintf("%s: %s: %v", kind, msg, err)
}

func (e *ErrQueryExecution) Error() string {
	return format("query execution error", e.Msg, e.Err)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}

func (e *ErrInvalidInput) Error() string {
	return format("invalid input error", e.Msg, e.Err)
}

func (e *ErrInvalidInput) Unwrap() error {
	return e.Err
}

func (e *ErrModelUnavailable) Error() string {
	return format("model unavailable", e.Msg, e.Err)
}

func (e *ErrModelUnavailable) Unwrap() error {
	return e.Err
}

func (e *ErrTimeout) Error() string {
	return format("timeout error", e.Msg, e.Err)
}

func (e *ErrTimeout) Unwrap() error {
	return e.Err
}

func (e *ErrCancelled) Error() string {
	return format("operation cancelled", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}

// IsInvalidInput reports whether err wraps an *ErrInvalidInput.
func IsInvalidInput(err error) bool {
	var target *ErrInvalidInput
	return errors.As(err, &target)
}

// IsModelUnavailable reports whether err wraps an *ErrModelUnavailable.
func IsModelUnavailable(err error) bool {
	var target *ErrModelUnavailable
	return errors.As(err, &target)
}

// IsQueryExecution reports whether err wraps an *ErrQueryExecution.
func IsQueryExecution(err error) bool {
	var target *ErrQueryExecution
	return errors.As(err, &target)
}

// IsTimeout reports whether err wraps an *ErrTimeout or an *ErrCancelled.
func IsTimeout(err error) bool {
	var timeout *ErrTimeout
	var cancelled *ErrCancelled
	return errors.As(err, &timeout) || errors.As(err, &cancelled)
}

// contextError converts a context failure into the matching typed error, or returns nil.
func contextError(ctx context.Context, msg string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &ErrTimeout{Msg: msg, Err: err}
	default:
		return &ErrCancelled{Msg: msg, Err: err}
	}
}
