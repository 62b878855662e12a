// Copyright 2025 Blink Labs Software
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

package api

import (
	"github.com/blinklabs-io/agora/chain"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/mempool"
)

// Node is what the API server needs from a running node. This decouples
// the HTTP server from the concrete Node struct.
type Node interface {
	Ledger() *ledger.Ledger
	Chain() *chain.Chain
	Mempool() *mempool.Mempool
	EventBus() *event.EventBus
}
