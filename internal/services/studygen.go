package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
)

// Operation names one structured prompt the generator can issue.
type Operation string

const (
	OperationStudyMaterials Operation = "study_materials"
	OperationKeyConcepts    Operation = "key_concepts"
)

// ModelRequest is a single structured-output prompt.
type ModelRequest struct {
	Operation Operation
	Prompt    string
}

// Model is a remote LLM that answers with a JSON document.
type Model interface {
	Name() string
	GenerateJSON(ctx context.Context, req ModelRequest) (string, error)
}

type GeneratorOptions struct {
	Timeout            time.Duration
	MaxContentChars    int
	ConcurrentRequests int
	Cache              ResultCache
	Logger             *logger.Logger
}

type StudyGenerator struct {
	model    Model
	cache    ResultCache
	log      *logger.Logger
	timeout  time.Duration
	maxChars int
	rateChan chan struct{} // Token bucket
	group    singleflight.Group
}

func NewStudyGenerator(model Model, opts GeneratorOptions) *StudyGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ConcurrentRequests <= 0 {
		opts.ConcurrentRequests = 5
	}
	if opts.Cache == nil {
		opts.Cache = NoopCache{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	rateChan := make(chan struct{}, opts.ConcurrentRequests)
	for i := 0; i < opts.ConcurrentRequests; i++ {
		rateChan <- struct{}{}
	}

	return &StudyGenerator{
		model:    model,
		cache:    opts.Cache,
		log:      opts.Logger.With("model", model.Name()),
		timeout:  opts.Timeout,
		maxChars: opts.MaxContentChars,
		rateChan: rateChan,
	}
}

// Generate produces a summary, key concepts and flashcards for content.
func (g *StudyGenerator) Generate(ctx context.Context, content string) (*models.StudyMaterials, error) {
	raw, err := g.run(ctx, OperationStudyMaterials, content, buildStudyMaterialsPrompt, func(raw string) (interface{}, error) {
		return parseStudyMaterials(raw)
	})
	if err != nil {
		return nil, err
	}

	var out models.StudyMaterials
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GenerationError{Reason: "decode cached result", Err: err}
	}
	return &out, nil
}

// ExtractConcepts returns only the key concepts of content.
func (g *StudyGenerator) ExtractConcepts(ctx context.Context, content string) ([]string, error) {
	raw, err := g.run(ctx, OperationKeyConcepts, content, buildKeyConceptsPrompt, func(raw string) (interface{}, error) {
		return parseKeyConcepts(raw)
	})
	if err != nil {
		return nil, err
	}

	var out models.ExtractConceptsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GenerationError{Reason: "decode cached result", Err: err}
	}
	return out.KeyConcepts, nil
}

// run validates content, consults the cache, then issues at most one model
// call per distinct key at a time. The validated result travels as JSON so
// every caller gets its own copy.
func (g *StudyGenerator) run(
	ctx context.Context,
	op Operation,
	content string,
	buildPrompt func(string) string,
	parse func(string) (interface{}, error),
) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if g.maxChars > 0 && utf8.RuneCountInString(content) > g.maxChars {
		return nil, &GenerationError{Reason: fmt.Sprintf("content exceeds %d characters", g.maxChars), Err: ErrContentTooLong}
	}

	key := CacheKey(g.model.Name(), op, content)
	if cached, ok, err := g.cache.Get(ctx, key); err != nil {
		g.log.Warn("cache read failed", "operation", op, "error", err)
	} else if ok {
		g.log.Debug("cache hit", "operation", op)
		return cached, nil
	}

	// The shared call is detached from any one caller so a caller that goes
	// away does not fail the others; each caller still waits on its own ctx.
	callCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		raw, err := g.call(callCtx, ModelRequest{Operation: op, Prompt: buildPrompt(content)})
		if err != nil {
			g.log.Error("model call failed", "operation", op, "elapsed", time.Since(start), "error", err)
			return nil, err
		}

		result, err := parse(raw)
		if err != nil {
			g.log.Warn("model response rejected", "operation", op, "error", err)
			return nil, err
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, &GenerationError{Reason: "encode result", Err: err}
		}
		if err := g.cache.Set(callCtx, key, encoded); err != nil {
			g.log.Warn("cache write failed", "operation", op, "error", err)
		}

		g.log.Info("model call succeeded", "operation", op, "elapsed", time.Since(start))
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return nil, &GenerationError{Reason: "request cancelled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			g.log.Debug("coalesced with in-flight request", "operation", op)
		}
		return res.Val.([]byte), nil
	}
}

func (g *StudyGenerator) call(ctx context.Context, req ModelRequest) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", &GenerationError{Reason: "waiting for model slot", Err: err}
	}
	defer g.releaseRate()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.model.GenerateJSON(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &GenerationError{Reason: fmt.Sprintf("model did not answer within %s", g.timeout), Err: err}
		}
		return "", &GenerationError{Reason: "model request failed", Err: err}
	}
	return raw, nil
}

// acquireRate blocks until a model slot is available
func (g *StudyGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *StudyGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

// Response parsing

type flashcardWire struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

type studyMaterialsWire struct {
	Summary     *string          `json:"summary"`
	KeyConcepts *[]string        `json:"keyConcepts"`
	Flashcards  *[]flashcardWire `json:"flashcards"`
}

type keyConceptsWire struct {
	KeyConcepts *[]string `json:"keyConcepts"`
}

func invalidShape(format string, args ...interface{}) error {
	return &GenerationError{Reason: "response failed shape validation", Err: fmt.Errorf(format, args...)}
}

func parseStudyMaterials(raw string) (*models.StudyMaterials, error) {
	var wire studyMaterialsWire
	if err := decodeJSONObject(raw, &wire); err != nil {
		return nil, err
	}

	if wire.Summary == nil || strings.TrimSpace(*wire.Summary) == "" {
		return nil, invalidShape("summary is missing")
	}
	if wire.KeyConcepts == nil {
		return nil, invalidShape("keyConcepts is missing")
	}
	if wire.Flashcards == nil {
		return nil, invalidShape("flashcards is missing")
	}

	out := &models.StudyMaterials{
		Summary:     *wire.Summary,
		KeyConcepts: *wire.KeyConcepts,
		Flashcards:  make([]models.Flashcard, 0, len(*wire.Flashcards)),
	}
	for i, c := range *wire.Flashcards {
		if c.Question == nil || strings.TrimSpace(*c.Question) == "" {
			return nil, invalidShape("flashcards[%d].question is missing", i)
		}
		if c.Answer == nil || strings.TrimSpace(*c.Answer) == "" {
			return nil, invalidShape("flashcards[%d].answer is missing", i)
		}
		out.Flashcards = append(out.Flashcards, models.Flashcard{Question: *c.Question, Answer: *c.Answer})
	}

	return out, nil
}

func parseKeyConcepts(raw string) (*models.ExtractConceptsResponse, error) {
	var wire keyConceptsWire
	if err := decodeJSONObject(raw, &wire); err != nil {
		return nil, err
	}
	if wire.KeyConcepts == nil {
		return nil, invalidShape("keyConcepts is missing")
	}

	return &models.ExtractConceptsResponse{KeyConcepts: *wire.KeyConcepts}, nil
}

// decodeJSONObject tolerates markdown fences and chatter around the object.
func decodeJSONObject(raw string, v interface{}) error {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return invalidShape("empty response")
	}

	if !json.Valid([]byte(text)) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return invalidShape("response contains no JSON object")
		}
		text = text[start : end+1]
	}

	if err := json.Unmarshal([]byte(text), v); err != nil {
		return invalidShape("response is not the expected JSON object: %v", err)
	}
	return nil
}

// Prompts

func buildStudyMaterialsPrompt(content string) string {
	var b strings.Builder

	b.WriteString("You are an expert AI academic assistant. From the content provided below, please perform the following tasks:\n")
	b.WriteString("1. Generate a concise summary.\n")
	b.WriteString("2. Extract the most important key concepts as a list of strings.\n")
	b.WriteString("3. Create a set of flashcards (question and answer format) based on the key concepts.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(`JSON schema:
{"summary": "string", "keyConcepts": ["string"], "flashcards": [{"question": "string", "answer": "string"}]}
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildKeyConceptsPrompt(content string) string {
	var b strings.Builder

	b.WriteString("You are an expert academic assistant. Your task is to identify and extract the key concepts from the provided content.\n")
	b.WriteString("Focus on the most important and central ideas.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(`JSON schema:
{"keyConcepts": ["string"]}
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}
