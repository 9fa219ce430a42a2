package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/usecase/embedding"
)

// --- Mocks ---

type mockEmbedder struct {
	vecs  map[string][]float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.vecs[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockEncoder struct {
	clip  domain.ClipEmbeddings
	err   error
	calls int
}

func (m *mockEncoder) EmbedMedia(
	_ context.Context, _ string, _ domain.MediaFile,
) (domain.ClipEmbeddings, error) {
	m.calls++
	return m.clip, m.err
}

type mockMedia struct {
	downloadErr error
	invalidIDs  map[string]bool
	downloads   int
}

func (m *mockMedia) Download(
	_ context.Context, _ string, _, _ int, _ string,
) (domain.MediaFile, error) {
	m.downloads++
	if m.downloadErr != nil {
		return domain.MediaFile{}, m.downloadErr
	}
	return domain.MediaFile{Path: "/tmp/clip.mp4"}, nil
}

func (m *mockMedia) IsValidID(id string) bool {
	return !m.invalidIDs[id]
}

type mockIndex struct {
	scores []float64
	err    error
	calls  int
	sent   int
}

func (m *mockIndex) GetNoveltyScores(
	_ context.Context, items []domain.VideoMetadata,
) ([]float64, error) {
	m.calls++
	m.sent = len(items)
	return m.scores, m.err
}

type mockUploader struct {
	calls     int
	lastItems []domain.VideoMetadata
}

func (m *mockUploader) UploadMetadata(
	_ context.Context, items []domain.VideoMetadata, _, _ []float64, _ string,
) error {
	m.calls++
	m.lastItems = items
	return nil
}

type mockProxy struct{}

func (mockProxy) GetProxyURL(_ context.Context) (string, error) { return "", nil }

// --- Helpers ---

type testDeps struct {
	embedder *mockEmbedder
	encoder  *mockEncoder
	media    *mockMedia
	index    *mockIndex
	uploader *mockUploader
}

func newTestService(d *testDeps) *Service {
	return New(
		d.embedder, d.encoder, embedding.NewGate(),
		d.media, d.index, d.uploader, mockProxy{},
		zap.NewNop(),
	).WithRandSource(func() float64 { return 1.0 }, func(int) int { return 0 })
}

func defaultDeps() *testDeps {
	return &testDeps{
		embedder: &mockEmbedder{vecs: map[string][]float32{}},
		encoder:  &mockEncoder{},
		media:    &mockMedia{},
		index:    &mockIndex{scores: []float64{1.0, 1.0}},
		uploader: &mockUploader{},
	}
}

func twoDistinctItems() []domain.VideoMetadata {
	return []domain.VideoMetadata{
		{
			VideoID: "aaaaaaaaaaa", Description: "desc-a",
			StartTime: 0, EndTime: 30,
			VideoEmb: []float32{1, 0}, AudioEmb: []float32{1, 0}, DescriptionEmb: []float32{1, 0},
		},
		{
			VideoID: "bbbbbbbbbbb", Description: "desc-b",
			StartTime: 0, EndTime: 30,
			VideoEmb: []float32{0, 1}, AudioEmb: []float32{0, 1}, DescriptionEmb: []float32{0, 1},
		},
	}
}

var testReq = domain.VideoRequest{Query: "cats", NumVideos: 8}

// --- Tests ---

func TestScore_HappyPath_AuditSkipped(t *testing.T) {
	deps := defaultDeps()
	deps.embedder.vecs["desc-a"] = []float32{1, 0}
	deps.embedder.vecs["cats"] = []float32{1, 0}
	svc := newTestService(deps)

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// desc relevance 1+1, query relevance 1+0, novelty 1+1.
	want := (2.0 + 1.0 + 2.0) / 3 / 8
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("expected score %f, got %f", want, score)
	}
	if score < domain.MinScore || score > 1.0 {
		t.Errorf("score %f outside [%f, 1.0]", score, domain.MinScore)
	}
	if deps.media.downloads != 0 {
		t.Error("audit skipped: no downloads expected")
	}
	if deps.index.calls != 1 {
		t.Errorf("expected 1 novelty index call, got %d", deps.index.calls)
	}
	if deps.uploader.calls != 1 {
		t.Errorf("expected 1 upload, got %d", deps.uploader.calls)
	}
	if len(deps.uploader.lastItems) != 2 {
		t.Errorf("expected 2 uploaded items, got %d", len(deps.uploader.lastItems))
	}
}

func TestScore_InvalidID_PunishesWholeSubmission(t *testing.T) {
	deps := defaultDeps()
	deps.media.invalidIDs = map[string]bool{"bbbbbbbbbbb": true}
	svc := newTestService(deps)

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != domain.FakeVideoPunishment {
		t.Errorf("expected punishment %f, got %f", domain.FakeVideoPunishment, score)
	}
	if deps.index.calls != 0 {
		t.Error("novelty index must not be called for a punished submission")
	}
	if deps.embedder.calls != 0 {
		t.Error("no embedding expected before punishment")
	}
}

func TestScore_FakeVideoDuringAudit_Punishes(t *testing.T) {
	deps := defaultDeps()
	deps.media.downloadErr = domain.ErrFakeVideo
	svc := newTestService(deps).
		WithRandSource(func() float64 { return 0.0 }, func(int) int { return 0 }) // always audit

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != domain.FakeVideoPunishment {
		t.Errorf("expected punishment %f, got %f", domain.FakeVideoPunishment, score)
	}
	if deps.index.calls != 0 {
		t.Error("novelty index must not be called after a failed audit")
	}
	if deps.encoder.calls != 0 {
		t.Error("encoder must not run after confirmed fabrication")
	}
}

func TestScore_BlockedSource_FallsBackToDescription(t *testing.T) {
	deps := defaultDeps()
	deps.media.downloadErr = domain.ErrSourceBlocked
	deps.embedder.vecs["desc-a"] = []float32{1, 0}
	deps.embedder.vecs["desc-b"] = []float32{0, 1}
	deps.embedder.vecs["cats"] = []float32{1, 0}
	svc := newTestService(deps).
		WithRandSource(func() float64 { return 0.0 }, func(int) int { return 0 })

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score == domain.FakeVideoPunishment {
		t.Error("blocked source must not punish")
	}
	if deps.media.downloads != 1 {
		t.Errorf("expected a single download attempt, got %d", deps.media.downloads)
	}
	if deps.encoder.calls != 0 {
		t.Error("no media embedding without a downloaded clip")
	}
}

func TestScore_TimeoutExhaustsCandidates_NoDescriptionMatchFails(t *testing.T) {
	deps := defaultDeps()
	deps.media.downloadErr = context.DeadlineExceeded
	// Description re-embedding returns an orthogonal vector: loose check fails.
	deps.embedder.vecs["desc-a"] = []float32{0, 1}
	deps.embedder.vecs["desc-b"] = []float32{1, 0}
	svc := newTestService(deps).
		WithRandSource(func() float64 { return 0.0 }, func(int) int { return 0 })

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != domain.FakeVideoPunishment {
		t.Errorf("expected punishment for failed description check, got %f", score)
	}
	if deps.media.downloads != 2 {
		t.Errorf("expected both candidates attempted, got %d", deps.media.downloads)
	}
}

func TestScore_AllItemsFiltered_ReturnsMinScore(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)

	sub := &domain.Submission{
		Query: "cats", NumVideos: 8,
		Metadata: []domain.VideoMetadata{
			item("too-long", 0, domain.MaxVideoLength+1),
			item("too-short", 0, domain.MinVideoLength-1),
		},
	}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != domain.MinScore {
		t.Errorf("expected MinScore %f, got %f", domain.MinScore, score)
	}
	if deps.index.calls != 0 {
		t.Error("novelty index must not be called when nothing survives filtering")
	}
	if deps.embedder.calls != 0 {
		t.Error("no embedding expected when nothing survives filtering")
	}
}

func TestScore_EmptyIndexResponse_Unscored(t *testing.T) {
	deps := defaultDeps()
	deps.index.scores = nil
	deps.embedder.vecs["desc-a"] = []float32{1, 0}
	svc := newTestService(deps)

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	_, err := svc.Score(context.Background(), testReq, sub)
	if err == nil {
		t.Fatal("expected unscored error on empty index response")
	}
	if !errors.Is(err, domain.ErrNoveltyUnavailable) {
		t.Errorf("expected ErrNoveltyUnavailable, got %v", err)
	}
	if deps.uploader.calls != 0 {
		t.Error("no upload for an unscored submission")
	}
}

func TestScore_IndexKnowsEverything_ReturnsMinScore(t *testing.T) {
	deps := defaultDeps()
	deps.index.scores = []float64{0.01, 0.02}
	deps.embedder.vecs["desc-a"] = []float32{1, 0}
	svc := newTestService(deps)

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != domain.MinScore {
		t.Errorf("expected MinScore when the index knows all items, got %f", score)
	}
	if deps.uploader.calls != 0 {
		t.Error("no upload when nothing survives the novelty filter")
	}
}

func TestScore_TruncatesToRequestedCount(t *testing.T) {
	deps := defaultDeps()
	deps.index.scores = []float64{1.0}
	deps.embedder.vecs["desc-a"] = []float32{1, 0}
	svc := newTestService(deps)

	req := domain.VideoRequest{Query: "cats", NumVideos: 1}
	sub := &domain.Submission{Query: "cats", NumVideos: 1, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), req, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps.uploader.lastItems) != 1 {
		t.Errorf("expected truncation to 1 item, got %d", len(deps.uploader.lastItems))
	}
	if score < domain.MinScore || score > 1.0 {
		t.Errorf("score %f outside [%f, 1.0]", score, domain.MinScore)
	}
}

func TestScore_AuditPassWithDownloadedClip(t *testing.T) {
	deps := defaultDeps()
	deps.encoder.clip = domain.ClipEmbeddings{
		Video:       []float32{1, 0},
		Audio:       []float32{1, 0},
		Description: []float32{1, 0},
	}
	deps.embedder.vecs["cats"] = []float32{1, 0}
	svc := newTestService(deps).
		WithRandSource(func() float64 { return 0.0 }, func(int) int { return 0 })

	sub := &domain.Submission{Query: "cats", NumVideos: 8, Metadata: twoDistinctItems()}
	score, err := svc.Score(context.Background(), testReq, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deps.encoder.calls != 1 {
		t.Errorf("expected 1 media embedding, got %d", deps.encoder.calls)
	}
	if score < domain.MinScore || score > 1.0 {
		t.Errorf("score %f outside [%f, 1.0]", score, domain.MinScore)
	}
}
