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


package corpus

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ai/openai"
	"github.com/poiesic/corpus/connector"
	"github.com/poiesic/corpus/fetch"
	"github.com/poiesic/corpus/indexsync"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/sqlite"
	"github.com/poiesic/corpus/vectorindex"
	vxbadger "github.com/poiesic/corpus/vectorindex/badger"
)

// SourceAll selects every registered source in Fetch and IndexUpdate.
const SourceAll = "all"

// Corpus bundles the record store, the vector index, the embedding
// provider and the connector registry behind the operations the CLI
// invokes.
type Corpus struct {
	registry *connector.Registry
	store    storage.RecordStore
	index    vectorindex.Index
	embedder ai.Embedder
	engine   *fetch.Engine
	syncer   *indexsync.Syncer
	logger   *slog.Logger
}

// Option configures a Corpus.
type Option func(*corpusOptions)

type corpusOptions struct {
	aiConfig   *ai.Config
	embedder   ai.Embedder
	syncConfig *indexsync.Config
	progress   io.Writer
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) Option {
	return func(o *corpusOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder injects a pre-built embedder instead of constructing
// one from the AI configuration. Used by tests and embedded setups.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *corpusOptions) {
		o.embedder = embedder
	}
}

// WithSyncConfig sets the index synchronization configuration.
func WithSyncConfig(config *indexsync.Config) Option {
	return func(o *corpusOptions) {
		o.syncConfig = config
	}
}

// WithProgressWriter sets where long-running operations report
// progress. Default is os.Stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(o *corpusOptions) {
		o.progress = w
	}
}

// Open assembles a Corpus under dataDir with the given connectors.
// The record store and the vector index live in subdirectories of
// dataDir; the registry is immutable once built.
func Open(dataDir string, connectors []connector.Connector, opts ...Option) (*Corpus, error) {
	options := &corpusOptions{
		aiConfig: ai.DefaultConfig(),
		progress: os.Stderr,
	}
	for _, opt := range opts {
		opt(options)
	}

	registry, err := connector.NewRegistry(connectors...)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(filepath.Join(dataDir, "records"))
	if err != nil {
		return nil, err
	}

	index, err := vxbadger.Open(filepath.Join(dataDir, "vectors"))
	if err != nil {
		store.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			index.Close()
			store.Close()
			return nil, err
		}
	}

	engine, err := fetch.NewEngine(registry, store)
	if err != nil {
		index.Close()
		store.Close()
		return nil, err
	}

	syncer, err := indexsync.NewSyncer(store, embedder, index, options.syncConfig, options.progress)
	if err != nil {
		index.Close()
		store.Close()
		return nil, err
	}

	return &Corpus{
		registry: registry,
		store:    store,
		index:    index,
		embedder: embedder,
		engine:   engine,
		syncer:   syncer,
		logger:   slog.Default(),
	}, nil
}

// Close releases the store and the index.
func (c *Corpus) Close() error {
	if err := c.index.Close(); err != nil {
		c.logger.Error("error closing vector index", "err", err)
		return err
	}
	if err := c.store.Close(); err != nil {
		c.logger.Error("error closing record store", "err", err)
		return err
	}
	return nil
}

// Fetch runs the processing engine for one source, or every registered
// source when source is empty or "all". With rebuild, previously
// persisted records for the scope are cleared first.
func (c *Corpus) Fetch(ctx context.Context, source string, rebuild bool) ([]*fetch.Result, error) {
	if source == "" || source == SourceAll {
		return c.engine.RunAll(ctx, rebuild)
	}

	result, err := c.engine.Run(ctx, source, rebuild)
	if err != nil {
		return nil, err
	}
	return []*fetch.Result{result}, nil
}

// IndexUpdate brings the vector index up to date for one source, or
// all sources when source is empty or "all". With force, every
// accepted record in scope is re-embedded.
func (c *Corpus) IndexUpdate(ctx context.Context, source string, force bool) (*indexsync.Result, error) {
	if source == SourceAll {
		source = ""
	}
	return c.syncer.Update(ctx, source, force)
}

// Reconcile removes vectors for records that are gone from the store
// or were rejected after indexing. Returns the number removed.
func (c *Corpus) Reconcile(ctx context.Context) (int, error) {
	return c.syncer.Reconcile(ctx)
}

// Search embeds the query and returns the closest chunks.
func (c *Corpus) Search(ctx context.Context, query string, limit int) ([]vectorindex.Match, error) {
	vector, err := c.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.index.Search(ctx, indexsync.NormalizeVector(vector), limit)
}

// Store exposes the record store for callers that need direct reads.
func (c *Corpus) Store() storage.RecordStore {
	return c.store
}

// Registry exposes the connector registry.
func (c *Corpus) Registry() *connector.Registry {
	return c.registry
}
