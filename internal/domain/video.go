package domain

// VideoMetadata is one claimed video item in a miner submission. Embeddings are
// produced once by the encoder service and never mutated afterwards.
type VideoMetadata struct {
	VideoID        string    `json:"video_id"`
	Description    string    `json:"description"`
	Views          int64     `json:"views"`
	StartTime      int       `json:"start_time"`
	EndTime        int       `json:"end_time"`
	VideoEmb       []float32 `json:"video_emb"`
	AudioEmb       []float32 `json:"audio_emb"`
	DescriptionEmb []float32 `json:"description_emb"`
}

// Duration returns the clip length in seconds.
func (m VideoMetadata) Duration() int {
	return m.EndTime - m.StartTime
}

// VideoRequest is the query sent to every sampled miner in a round.
type VideoRequest struct {
	Query     string `json:"query"`
	NumVideos int    `json:"num_videos"`
}

// Submission is one miner's response to one round's query. Owned by the round
// that received it and immutable once scored.
type Submission struct {
	Query     string          `json:"query"`
	NumVideos int             `json:"num_videos"`
	Metadata  []VideoMetadata `json:"video_metadata"`
}

// Miner identifies a registered worker node on the subnet.
type Miner struct {
	UID     int
	Address string
	Key     string
	Name    string
}

// MediaFile is a handle to a downloaded clip on local disk.
type MediaFile struct {
	Path string
}

// EmbeddingBatch holds stacked per-modality vectors, index-aligned to a slice
// of VideoMetadata. Filtering produces a new aligned batch; rows are never
// mutated in place.
type EmbeddingBatch struct {
	Video       [][]float32
	Audio       [][]float32
	Description [][]float32
}

// StackEmbeddings builds an aligned batch from submission items.
func StackEmbeddings(items []VideoMetadata) EmbeddingBatch {
	b := EmbeddingBatch{
		Video:       make([][]float32, len(items)),
		Audio:       make([][]float32, len(items)),
		Description: make([][]float32, len(items)),
	}
	for i, item := range items {
		b.Video[i] = item.VideoEmb
		b.Audio[i] = item.AudioEmb
		b.Description[i] = item.DescriptionEmb
	}
	return b
}

// Len returns the number of aligned rows.
func (b EmbeddingBatch) Len() int {
	return len(b.Video)
}

// Filter returns a new batch keeping rows where keep[i] is true.
func (b EmbeddingBatch) Filter(keep []bool) EmbeddingBatch {
	out := EmbeddingBatch{}
	for i := range b.Video {
		if !keep[i] {
			continue
		}
		out.Video = append(out.Video, b.Video[i])
		out.Audio = append(out.Audio, b.Audio[i])
		out.Description = append(out.Description, b.Description[i])
	}
	return out
}

// FilterMetadata returns the items where keep[i] is true, preserving order.
func FilterMetadata(items []VideoMetadata, keep []bool) []VideoMetadata {
	out := make([]VideoMetadata, 0, len(items))
	for i, item := range items {
		if keep[i] {
			out = append(out, item)
		}
	}
	return out
}
