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


// Package storage provides the record persistence abstraction.
//
// It defines the RecordStore interface that decouples the processing
// and index synchronization engines from the backing database, so that
// alternative backends can be swapped in without touching engine code.
//
// Public constructors in backend packages return the RecordStore
// interface rather than concrete types:
//
//	store, err := sqlite.NewStore(dataDir)  // returns storage.RecordStore
//
// # Thread Safety
//
// All RecordStore implementations must be thread-safe and support
// concurrent access from multiple goroutines. The unit of atomicity is
// a single record's persistence; no cross-record transactions are
// required by the engines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout
// support.
package storage
