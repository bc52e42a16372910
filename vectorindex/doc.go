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


// Package vectorindex defines the vector index abstraction used by the
// index synchronization engine.
//
// The engine only needs a narrow contract: replace all chunks for a
// record in one logical operation, delete a record, and enumerate what
// the index currently holds. The badger sub-package provides an
// embedded implementation; a remote vector database can be slotted in
// by implementing the same interface.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The synchronization
// engine guarantees that concurrent workers never touch the same
// record ID.
package vectorindex
