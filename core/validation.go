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

import "fmt"

// MinTextLength is the minimum accepted body length in bytes. Shorter
// documents are retained for audit with StatusRejected but never embedded.
const MinTextLength = 80

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Source and NaturalKey must not be empty
//   - Title, URL and Text must not be empty
//   - Text must be at least MinTextLength bytes
//
// NOT validated (populated by the engines):
//   - ContentHash and Id (computed from the fields above)
//   - IndexedHash (set by the index synchronization engine)
//   - DatePublished (unknown publication dates are acceptable)
//
// A validation failure is a quality rejection, not a processing error:
// callers persist the record with StatusRejected and the returned
// message as the reason.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingSource)
	}

	if record.NaturalKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingNaturalKey)
	}

	if record.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingTitle)
	}

	if record.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingURL)
	}

	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingText)
	}

	if len(record.Text) < MinTextLength {
		return fmt.Errorf("%w: %w (%d bytes)", ErrInvalidRecord, ErrTextTooShort, len(record.Text))
	}

	return nil
}

// ValidateStatus validates that a Status has a valid value.
func ValidateStatus(status Status) error {
	if status != StatusOK && status != StatusRejected {
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
	return nil
}
