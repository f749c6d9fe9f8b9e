package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/auth"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/policy"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/internal/throttle"
	"github.com/sells-group/enrich-cli/pkg/demographic"
	"github.com/sells-group/enrich-cli/pkg/dnc"
	"github.com/sells-group/enrich-cli/pkg/peoplesearch"
	"github.com/sells-group/enrich-cli/pkg/phoneintel"
)

// Stub provider clients: enough behavior for the runner to exercise the
// pipeline without any network.

type stubPeople struct{}

func (stubPeople) Search(ctx context.Context, q peoplesearch.Query) (*peoplesearch.SearchResponse, error) {
	return &peoplesearch.SearchResponse{
		Candidates: []peoplesearch.Candidate{{Phones: []string{"3035551234"}, Score: 0.9}},
		Count:      1,
	}, nil
}

type stubPhone struct{}

func (stubPhone) Lookup(ctx context.Context, phone string) (*phoneintel.LookupResponse, error) {
	return &phoneintel.LookupResponse{Phone: phone, LineType: "mobile", Carrier: "Verizon", Valid: true}, nil
}

type stubDNC struct{}

func (stubDNC) Check(ctx context.Context, token, phone string) (*dnc.CheckResponse, error) {
	return &dnc.CheckResponse{Phone: phone, DoNotCall: false}, nil
}

type stubDemo struct{}

func (stubDemo) Lookup(ctx context.Context, q demographic.Query) (*demographic.LookupResponse, error) {
	return &demographic.LookupResponse{Age: 42, Matched: true}, nil
}

type stubIssuer struct{}

func (stubIssuer) Exchange(ctx context.Context) (string, time.Duration, error) {
	return "tok", time.Hour, nil
}

func newTestPipeline() *pipeline.Pipeline {
	return pipeline.New(
		throttle.New(nil, time.Millisecond),
		auth.NewCache(stubIssuer{}),
		policy.New(),
		stubPeople{},
		stubPhone{},
		stubDNC{},
		stubDemo{},
	).WithCallTimeout(time.Second)
}

// fakeStore is an in-memory Store that records every flush window.
type fakeStore struct {
	mu          sync.Mutex
	batches     map[string]*model.Batch
	results     map[string]map[int]*model.EnrichmentResult
	flushes     [][]string // lead ids per AppendResults call
	appendErr   error
	nextBatchID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches: make(map[string]*model.Batch),
		results: make(map[string]map[int]*model.EnrichmentResult),
	}
}

func (f *fakeStore) CreateBatch(ctx context.Context, total int) (*model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextBatchID++
	b := &model.Batch{
		ID:        "batch-" + strconv.Itoa(f.nextBatchID),
		Status:    model.BatchStatusRunning,
		Progress:  model.BatchProgress{Total: total},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	f.batches[b.ID] = b
	f.results[b.ID] = make(map[int]*model.EnrichmentResult)
	return b, nil
}

func (f *fakeStore) UpdateBatchProgress(ctx context.Context, batchID string, progress model.BatchProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	b.Progress = progress
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) FinishBatch(ctx context.Context, batchID string, status model.BatchStatus, progress model.BatchProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	b.Status = status
	b.Progress = progress
	return nil
}

func (f *fakeStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", batchID)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ListBatches(ctx context.Context, filter store.BatchFilter) ([]model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Batch
	for _, b := range f.batches {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeStore) AppendResults(ctx context.Context, batchID string, startPos int, results []*model.EnrichmentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	var ids []string
	for i, r := range results {
		f.results[batchID][startPos+i] = r
		ids = append(ids, r.Lead.ID)
	}
	f.flushes = append(f.flushes, ids)
	return nil
}

func (f *fakeStore) GetResults(ctx context.Context, batchID string) ([]*model.EnrichmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.results[batchID]
	out := make([]*model.EnrichmentResult, 0, len(stored))
	for pos := 0; pos < len(stored); pos++ {
		out = append(out, stored[pos])
	}
	return out, nil
}

func (f *fakeStore) ProcessedLeadIDs(ctx context.Context, batchID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := make(map[string]bool)
	for _, r := range f.results[batchID] {
		done[r.Lead.ID] = true
	}
	return done, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func makeLeads(n int) []model.LeadRecord {
	leads := make([]model.LeadRecord, n)
	for i := range leads {
		leads[i] = model.LeadRecord{
			ID:        "lead-" + strconv.Itoa(i+1),
			FirstName: "Jane",
			LastName:  "Doe",
		}
	}
	return leads
}

func TestRunProcessesAllLeads(t *testing.T) {
	st := newFakeStore()
	runner := NewRunner(newTestPipeline(), st, WithFlushEvery(2))

	summary, err := runner.Run(context.Background(), makeLeads(5), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Progress.Processed)
	assert.Equal(t, 5, summary.Progress.WithPhone)
	assert.Zero(t, summary.Progress.WithErrors)
	assert.False(t, summary.Cancelled)

	b, err := st.GetBatch(context.Background(), summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusComplete, b.Status)

	results, err := st.GetResults(context.Background(), summary.BatchID)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, "lead-"+strconv.Itoa(i+1), r.Lead.ID, "results stored in input order")
	}
}

func TestRunFlushCadence(t *testing.T) {
	st := newFakeStore()
	runner := NewRunner(newTestPipeline(), st, WithFlushEvery(2))

	_, err := runner.Run(context.Background(), makeLeads(5), nil)
	require.NoError(t, err)

	// 5 records at flush-every 2: windows of 2, 2, then the final 1.
	require.Len(t, st.flushes, 3)
	assert.Len(t, st.flushes[0], 2)
	assert.Len(t, st.flushes[1], 2)
	assert.Len(t, st.flushes[2], 1)
}

func TestRunCancellationBetweenRecords(t *testing.T) {
	st := newFakeStore()
	runner := NewRunner(newTestPipeline(), st, WithFlushEvery(10))

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	onEvent := func(ev model.StageEvent) {
		// Cancel mid-batch once the second record starts reporting.
		if ev.LeadID == "lead-2" {
			processed++
			cancel()
		}
	}

	summary, err := runner.Run(ctx, makeLeads(5), onEvent)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	// The in-flight record finished; later leads never started.
	assert.Equal(t, 2, summary.Progress.Processed)

	b, err := st.GetBatch(context.Background(), summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCancelled, b.Status)

	// The partial window was still flushed durably.
	results, err := st.GetResults(context.Background(), summary.BatchID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunResumeSkipsProcessedLeads(t *testing.T) {
	st := newFakeStore()
	leads := makeLeads(4)

	// Simulate an interrupted run that landed the first two results.
	b, err := st.CreateBatch(context.Background(), len(leads))
	require.NoError(t, err)
	pre := []*model.EnrichmentResult{
		model.NewEnrichmentResult(leads[0]),
		model.NewEnrichmentResult(leads[1]),
	}
	require.NoError(t, st.AppendResults(context.Background(), b.ID, 0, pre))
	st.flushes = nil

	runner := NewRunner(newTestPipeline(), st, WithFlushEvery(10), WithResume(b.ID))
	summary, err := runner.Run(context.Background(), leads, nil)
	require.NoError(t, err)

	assert.Equal(t, b.ID, summary.BatchID)
	assert.Equal(t, 2, summary.Progress.Processed, "only the remaining leads are processed")

	// New results appended after the preserved ones, no duplicates.
	results, err := st.GetResults(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	seen := make(map[string]int)
	for _, r := range results {
		seen[r.Lead.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "lead %s duplicated", id)
	}
}

func TestRunFlushFailureAbortsBatch(t *testing.T) {
	st := newFakeStore()
	st.appendErr = errors.New("disk full")
	runner := NewRunner(newTestPipeline(), st, WithFlushEvery(1))

	summary, err := runner.Run(context.Background(), makeLeads(3), nil)
	require.Error(t, err)
	assert.Nil(t, summary)

	// The failed batch is marked as such.
	var batchID string
	st.mu.Lock()
	for id := range st.batches {
		batchID = id
	}
	st.mu.Unlock()
	b, err := st.GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, b.Status)
}

func TestRunEmptyLeads(t *testing.T) {
	st := newFakeStore()
	runner := NewRunner(newTestPipeline(), st)

	summary, err := runner.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Progress.Processed)
	assert.Empty(t, st.flushes)
}
