package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyai-backend/internal/models"
)

type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int32
	lastReq  ModelRequest
	released chan struct{}
}

func (m *fakeModel) Name() string { return "fake/model" }

func (m *fakeModel) GenerateJSON(ctx context.Context, req ModelRequest) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()

	if m.released != nil {
		select {
		case <-m.released:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

const validMaterialsJSON = `{
  "summary": "Cells are the basic unit of life.",
  "keyConcepts": ["cell", "membrane", "nucleus"],
  "flashcards": [
    {"question": "What is the basic unit of life?", "answer": "The cell."},
    {"question": "What controls the cell?", "answer": "The nucleus."}
  ]
}`

func TestGenerate_ReturnsResponseUnchanged(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	got, err := gen.Generate(context.Background(), "Biology lecture about cells.")
	require.NoError(t, err)

	want := &models.StudyMaterials{
		Summary:     "Cells are the basic unit of life.",
		KeyConcepts: []string{"cell", "membrane", "nucleus"},
		Flashcards: []models.Flashcard{
			{Question: "What is the basic unit of life?", Answer: "The cell."},
			{Question: "What controls the cell?", Answer: "The nucleus."},
		},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, OperationStudyMaterials, model.lastReq.Operation)
	assert.Contains(t, model.lastReq.Prompt, "Biology lecture about cells.")
}

func TestGenerate_EmptyContentSkipsModel(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := gen.Generate(context.Background(), content)
		assert.ErrorIs(t, err, ErrEmptyContent)
	}
	_, err := gen.ExtractConcepts(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	assert.Equal(t, int32(0), model.calls.Load())
}

func TestGenerate_ContentTooLongSkipsModel(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON}
	gen := NewStudyGenerator(model, GeneratorOptions{MaxContentChars: 5})

	_, err := gen.Generate(context.Background(), "more than five")

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.ErrorIs(t, err, ErrContentTooLong)
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestGenerate_InvalidShapes(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I cannot help with that."},
		{"empty", ""},
		{"array", `[{"question": "q", "answer": "a"}]`},
		{"missing summary", `{"keyConcepts": [], "flashcards": []}`},
		{"blank summary", `{"summary": "  ", "keyConcepts": [], "flashcards": []}`},
		{"missing concepts", `{"summary": "s", "flashcards": []}`},
		{"missing flashcards", `{"summary": "s", "keyConcepts": ["a"]}`},
		{"concepts wrong type", `{"summary": "s", "keyConcepts": [1, 2], "flashcards": []}`},
		{"flashcard without answer", `{"summary": "s", "keyConcepts": [], "flashcards": [{"question": "q"}]}`},
		{"null", `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewStudyGenerator(&fakeModel{response: tc.response}, GeneratorOptions{})

			got, err := gen.Generate(context.Background(), "some content")
			assert.Nil(t, got)

			var genErr *GenerationError
			require.True(t, errors.As(err, &genErr), "expected GenerationError, got %T: %v", err, err)
			assert.Equal(t, "response failed shape validation", genErr.Reason)
		})
	}
}

func TestGenerate_ToleratesCodeFences(t *testing.T) {
	model := &fakeModel{response: "```json\n" + validMaterialsJSON + "\n```"}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	got, err := gen.Generate(context.Background(), "content")
	require.NoError(t, err)
	assert.Len(t, got.Flashcards, 2)
}

func TestGenerate_ModelErrorIsGenerationError(t *testing.T) {
	cause := errors.New("503 service unavailable")
	gen := NewStudyGenerator(&fakeModel{err: cause}, GeneratorOptions{})

	_, err := gen.Generate(context.Background(), "content")

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.ErrorIs(t, err, cause)
}

func TestGenerate_Timeout(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON, delay: time.Second}
	gen := NewStudyGenerator(model, GeneratorOptions{Timeout: 20 * time.Millisecond})

	_, err := gen.Generate(context.Background(), "content")

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_NoRetryOnFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("boom")}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	_, err := gen.Generate(context.Background(), "content")
	require.Error(t, err)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestGenerate_CacheHitSkipsModel(t *testing.T) {
	cache, err := NewLRUCache(8)
	require.NoError(t, err)

	model := &fakeModel{response: validMaterialsJSON}
	gen := NewStudyGenerator(model, GeneratorOptions{Cache: cache})

	first, err := gen.Generate(context.Background(), "same content")
	require.NoError(t, err)
	first.KeyConcepts[0] = "mutated by caller"

	second, err := gen.Generate(context.Background(), "same content")
	require.NoError(t, err)

	assert.Equal(t, int32(1), model.calls.Load())
	assert.Equal(t, "cell", second.KeyConcepts[0])
	assert.Equal(t, 1, cache.Len())
}

func TestGenerate_FailuresAreNotCached(t *testing.T) {
	cache, err := NewLRUCache(8)
	require.NoError(t, err)

	model := &fakeModel{response: `{"summary": ""}`}
	gen := NewStudyGenerator(model, GeneratorOptions{Cache: cache})

	_, err = gen.Generate(context.Background(), "content")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestGenerate_CoalescesInFlightRequests(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON, released: make(chan struct{})}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Generate(context.Background(), "shared content")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return model.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the other callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(model.released)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestGenerate_CancelledCallerDoesNotFailSharedCall(t *testing.T) {
	model := &fakeModel{response: validMaterialsJSON, released: make(chan struct{})}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := gen.Generate(firstCtx, "shared content")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return model.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	var second *models.StudyMaterials
	go func() {
		var err error
		second, err = gen.Generate(context.Background(), "shared content")
		secondErr <- err
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(model.released)
	select {
	case err := <-secondErr:
		require.NoError(t, err)
		assert.Equal(t, "Cells are the basic unit of life.", second.Summary)
	case <-time.After(time.Second):
		t.Fatal("live caller did not return")
	}
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestExtractConcepts(t *testing.T) {
	model := &fakeModel{response: `{"keyConcepts": ["entropy", "enthalpy"]}`}
	gen := NewStudyGenerator(model, GeneratorOptions{})

	got, err := gen.ExtractConcepts(context.Background(), "thermodynamics notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"entropy", "enthalpy"}, got)
	assert.Equal(t, OperationKeyConcepts, model.lastReq.Operation)
}

func TestExtractConcepts_MissingField(t *testing.T) {
	gen := NewStudyGenerator(&fakeModel{response: `{"concepts": ["x"]}`}, GeneratorOptions{})

	_, err := gen.ExtractConcepts(context.Background(), "notes")

	var genErr *GenerationError
	assert.True(t, errors.As(err, &genErr))
}

func TestCacheKey_DistinguishesInputs(t *testing.T) {
	base := CacheKey("m", OperationStudyMaterials, "content")

	assert.Equal(t, base, CacheKey("m", OperationStudyMaterials, "content"))
	assert.NotEqual(t, base, CacheKey("other", OperationStudyMaterials, "content"))
	assert.NotEqual(t, base, CacheKey("m", OperationKeyConcepts, "content"))
	assert.NotEqual(t, base, CacheKey("m", OperationStudyMaterials, "content!"))
	assert.Len(t, base, 64)
}
