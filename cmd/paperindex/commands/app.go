package commands

import (
	"context"
	"errors"

	"paperindex/internal/chunker"
	"paperindex/internal/config"
	"paperindex/internal/embedding"
	"paperindex/internal/extractor"
	"paperindex/internal/logging"
	"paperindex/internal/pdfdoc"
	"paperindex/internal/service"
	"paperindex/internal/summarizer"
	"paperindex/internal/vectorstore"
)

func newExtractor(cfg *config.AppConfig) (*extractor.Extractor, error) {
	lib, err := cfg.PatternLibrary()
	if err != nil {
		return nil, err
	}
	return extractor.New(pdfdoc.NewOpener(), extractor.Options{
		Patterns:      lib,
		CaptionMargin: cfg.Extractor.CaptionMargin,
		Log:           logging.For("extractor"),
	})
}

// openService connects the embedder and the vector store and attaches to the
// collection. The caller closes the returned store.
func openService(ctx context.Context, cfg *config.AppConfig) (*service.IndexService, vectorstore.Storage, error) {
	emb, err := embedding.New(cfg.EmbeddingConfig())
	if err != nil {
		return nil, nil, err
	}
	store, err := vectorstore.New(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, nil, err
	}
	opts := service.Options{Log: logging.For("index")}
	if cfg.Chunker.Enabled {
		opts.Chunker = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	}
	if cfg.Summarizer.Enabled {
		opts.Summarizer = summarizer.NewFrequencySummarizer()
		opts.SummarySentences = cfg.Summarizer.MaxSentences
	}
	svc := service.NewIndexService(emb, store, opts)
	if err := svc.OpenOrCreate(ctx); err != nil {
		return nil, nil, errors.Join(err, store.Close())
	}
	return svc, store, nil
}

func closeStore(store vectorstore.Storage) {
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("close vector store")
	}
}
