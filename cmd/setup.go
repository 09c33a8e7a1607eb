package cmd

import (
	"context"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/config"
	"github.com/gennaro-ai/gennaro/internal/engine"
	"github.com/gennaro-ai/gennaro/internal/filestore"
	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/usage"
)

// engineOptions wires the shared engine dependencies: LLM routing, file
// resolution and usage logging. The broadcaster is supplied per command.
func engineOptions(ctx context.Context, cfg *config.Config, b broadcast.Broadcaster) ([]engine.Option, func()) {
	factory := engine.NewLLMFactory(&llm.Factory{LMStudioBaseURL: cfg.LMStudioBaseURL})

	opts := []engine.Option{
		engine.WithAgentFactory(factory),
		engine.WithBroadcaster(b),
		engine.WithUsageSink(usage.LogSink{}),
		engine.WithTimeout(cfg.RunTimeout),
	}

	cleanup := func() {}
	if store, err := filestore.OpenSQL(cfg.FileStorePath()); err == nil {
		opts = append(opts, engine.WithFileStore(store))
		cleanup = func() { _ = store.Close() }
	} else {
		logger.Warn(ctx, "File store unavailable, falling back to directory lookup", "err", err)
		opts = append(opts, engine.WithFileStore(&filestore.DirStore{Root: cfg.FilesDir}))
	}
	return opts, cleanup
}
