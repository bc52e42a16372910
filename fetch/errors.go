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


package fetch

import "errors"

var (
	// ErrRegistryRequired indicates a nil connector registry was provided.
	ErrRegistryRequired = errors.New("connector registry is required")

	// ErrStoreRequired indicates a nil record store was provided.
	ErrStoreRequired = errors.New("record store is required")

	// ErrSetupFailed indicates a connector's setup step failed, which
	// aborts that connector's run.
	ErrSetupFailed = errors.New("connector setup failed")
)
