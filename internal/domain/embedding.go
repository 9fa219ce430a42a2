package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// MediaEncoder recomputes multimodal embeddings for one downloaded clip.
// The underlying device serves one request at a time; callers must hold the
// encoder gate across the call.
type MediaEncoder interface {
	EmbedMedia(ctx context.Context, description string, media MediaFile) (ClipEmbeddings, error)
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// ClipEmbeddings holds the recomputed vectors for a single audited clip.
type ClipEmbeddings struct {
	Video       []float32
	Audio       []float32
	Description []float32
}
