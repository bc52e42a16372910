// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMissingSource indicates the Source field is empty.
	ErrMissingSource = errors.New("source cannot be empty")

	// ErrMissingNaturalKey indicates the NaturalKey field is empty.
	ErrMissingNaturalKey = errors.New("natural key cannot be empty")

	// ErrMissingTitle indicates the Title field is empty.
	ErrMissingTitle = errors.New("title cannot be empty")

	// ErrMissingURL indicates the URL field is empty.
	ErrMissingURL = errors.New("url cannot be empty")

	// ErrMissingText indicates the Text field is empty.
	ErrMissingText = errors.New("text cannot be empty")

	// ErrTextTooShort indicates the Text field is below the minimum length.
	ErrTextTooShort = errors.New("text below minimum length")

	// ErrInvalidStatus indicates an invalid Status value.
	ErrInvalidStatus = errors.New("invalid status")
)
