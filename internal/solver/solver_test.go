package solver

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/imaging"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/reference"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

const solvedResponse = "WORK:\nAdd the numbers.\nFINAL ANSWER: 4"

const evidenceBlock = `GRAPH_EVIDENCE:
  LEFT_ENDPOINT: x=-3, y=2, marker=open
  RIGHT_ENDPOINT: x=5, y=-1, marker=open
  ASYMPTOTES: none
  DISCONTINUITIES: none
  SCALE: x_tick=1, y_tick=1
  CONFIDENCE: 0.9`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.White)
		}
	}
	png, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return png
}

type fixture struct {
	coord  *Coordinator
	models *Models
	cfg    *config.Store
	clip   *clipboard.InMemory
	refs   *reference.Store
	mock   *MockLLMClient
	status *telemetry.Status
}

func newFixture(t *testing.T, mock *MockLLMClient, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfgStore, err := config.NewStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	if mutate != nil {
		_, err = cfgStore.Update(mutate)
		require.NoError(t, err)
	}

	refs, err := reference.NewStore(t.TempDir())
	require.NoError(t, err)

	mem := &clipboard.InMemory{}
	writer := &clipboard.Writer{CB: mem, Attempts: 2, Delay: time.Millisecond}
	committer := &clipboard.Committer{Writer: writer, Settle: time.Millisecond, Log: telemetry.Nop()}

	invoker := llm.NewInvoker(mock, telemetry.Nop())
	status := telemetry.NewStatus(telemetry.Nop())
	active := NewActiveSolve(telemetry.Nop())

	coord := &Coordinator{
		Cfg:       cfgStore,
		Clip:      mem,
		Committer: committer,
		Refs:      refs,
		Inv:       invoker,
		Status:    status,
		Log:       telemetry.Nop(),
		Active:    active,
	}
	models := &Models{
		Cfg:    cfgStore,
		Inv:    invoker,
		Writer: writer,
		Status: status,
		Log:    telemetry.Nop(),
		Active: active,
	}
	return &fixture{coord: coord, models: models, cfg: cfgStore, clip: mem, refs: refs, mock: mock, status: status}
}

func TestSolveHappyPath(t *testing.T) {
	f := newFixture(t, &MockLLMClient{Results: []mockResult{{Text: solvedResponse}}}, nil)
	f.clip.SetText("2 + 2 = ?")

	require.NoError(t, f.coord.Solve(context.Background()))

	writes := f.clip.Writes()
	require.Len(t, writes, 2)
	assert.Contains(t, writes[0], "WORK:")
	assert.Contains(t, writes[0], "FINAL ANSWER: 4")
	assert.Equal(t, "4", writes[1])

	msg, isErr := f.status.Current()
	assert.Equal(t, "SOLVED", msg)
	assert.False(t, isErr)
}

func TestSolveEmptyClipboard(t *testing.T) {
	f := newFixture(t, &MockLLMClient{}, nil)

	err := f.coord.Solve(context.Background())
	assert.ErrorIs(t, err, ErrEmptyClipboard)
	assert.Empty(t, f.clip.Writes())
}

func TestSolveSingleFlight(t *testing.T) {
	mock := &MockLLMClient{
		Results: []mockResult{{Text: solvedResponse}},
		Delay:   60 * time.Millisecond,
	}
	f := newFixture(t, mock, nil)
	f.clip.SetText("2 + 2 = ?")

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	var firstErr error
	go func() {
		defer wg.Done()
		close(started)
		firstErr = f.coord.Solve(context.Background())
	}()

	<-started
	time.Sleep(10 * time.Millisecond)
	err := f.coord.Solve(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestSolveRetriesRetryableFailure(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{
		{Err: context.DeadlineExceeded},
		{Text: solvedResponse},
	}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.LLM.Retries = 1
	})
	f.clip.SetText("2 + 2 = ?")

	require.NoError(t, f.coord.Solve(context.Background()))
	assert.Equal(t, 2, mock.CallCount())
}

func TestSolveDoesNotRetryAuthFailure(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{
		{Err: llm.ErrAuth},
		{Text: solvedResponse},
	}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.LLM.Retries = 2
	})
	f.clip.SetText("2 + 2 = ?")

	err := f.coord.Solve(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
	assert.Empty(t, f.clip.Writes())

	msg, isErr := f.status.Current()
	assert.True(t, isErr)
	assert.Contains(t, msg, "Solve failed")
}

func TestSolveReasoningModelSingleAttempt(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{
		{Err: context.DeadlineExceeded},
		{Text: solvedResponse},
	}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.LLM.Model = "gpt-5.2"
		cfg.LLM.Retries = 2
	})
	f.clip.SetText("2 + 2 = ?")

	err := f.coord.Solve(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestSolveMalformedResponseRetried(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{
		{Text: "I think the answer is four."},
		{Text: solvedResponse},
	}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.LLM.Retries = 1
	})
	f.clip.SetText("2 + 2 = ?")

	require.NoError(t, f.coord.Solve(context.Background()))
	assert.Equal(t, 2, mock.CallCount())
}

func TestSolveNoWriteOnFailure(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{{Err: context.DeadlineExceeded}}}
	f := newFixture(t, mock, nil)
	f.clip.SetText("2 + 2 = ?")

	assert.Error(t, f.coord.Solve(context.Background()))
	assert.Empty(t, f.clip.Writes())
}

func TestSolveReferencePrefix(t *testing.T) {
	f := newFixture(t, &MockLLMClient{Results: []mockResult{{Text: solvedResponse}}}, nil)
	require.NoError(t, f.refs.SetText("f(x) = x + 2", "f(x) = x + 2"))
	f.clip.SetText("What is f(2)?")

	require.NoError(t, f.coord.Solve(context.Background()))

	writes := f.clip.Writes()
	require.Len(t, writes, 2)
	assert.True(t, strings.HasPrefix(writes[0], "* REF TEXT: f(x) = x + 2"))
	// The bare final answer never carries the prefix.
	assert.Equal(t, "4", writes[1])
}

func TestSolveConsistencyBlocking(t *testing.T) {
	// Evidence says both endpoints are open; the answer uses inclusive
	// brackets. Blocking mode suppresses the clipboard write.
	answer := "WORK:\nDomain: [-3, 5]\nFINAL ANSWER: Domain: [-3, 5]"
	f := newFixture(t, &MockLLMClient{Results: []mockResult{{Text: answer}}}, func(cfg *config.Config) {
		cfg.Flags.ConsistencyBlocking = true
	})
	require.NoError(t, f.refs.SetImage([]byte{1}, "a graph"))
	require.NoError(t, f.refs.SetGraphMode(true))
	require.NoError(t, f.refs.SetEvidence(evidenceBlock))
	f.clip.SetText("Find the domain.")

	err := f.coord.Solve(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.clip.Writes())
}

func TestSolveConsistencyWarningStillWrites(t *testing.T) {
	answer := "WORK:\nDomain: [-3, 5]\nFINAL ANSWER: Domain: [-3, 5]"
	f := newFixture(t, &MockLLMClient{Results: []mockResult{{Text: answer}}}, func(cfg *config.Config) {
		cfg.Flags.ConsistencyWarnings = true
	})
	require.NoError(t, f.refs.SetImage([]byte{1}, "a graph"))
	require.NoError(t, f.refs.SetGraphMode(true))
	require.NoError(t, f.refs.SetEvidence(evidenceBlock))
	f.clip.SetText("Find the domain.")

	require.NoError(t, f.coord.Solve(context.Background()))
	assert.Len(t, f.clip.Writes(), 2)
}

func TestSolveCanceledByModelSwitch(t *testing.T) {
	mock := &MockLLMClient{
		Results: []mockResult{{Text: solvedResponse}},
		Delay:   80 * time.Millisecond,
	}
	f := newFixture(t, mock, nil)
	f.clip.SetText("2 + 2 = ?")

	done := make(chan error, 1)
	go func() { done <- f.coord.Solve(context.Background()) }()
	time.Sleep(15 * time.Millisecond)

	assert.True(t, f.coord.Active.Cancel("model switched"))

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.clip.Writes())
}

func TestModelCycleAdvances(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{{Text: "OK"}}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.LLM.AvailableModels = []string{"gpt-4o", "gpt-5.2", "claude-sonnet"}
	})

	name, err := f.models.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.2", name)
	assert.Equal(t, "gpt-5.2", f.cfg.Get().LLM.Model)

	// The announce lands on the clipboard.
	writes := f.clip.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, "MODEL ACTIVE: gpt-5.2", writes[len(writes)-1])
}

func TestModelSetCancelsActiveSolveBeforeProbe(t *testing.T) {
	mock := &MockLLMClient{
		Results: []mockResult{{Text: solvedResponse}, {Text: "OK"}},
		Delay:   80 * time.Millisecond,
	}
	f := newFixture(t, mock, nil)
	f.clip.SetText("2 + 2 = ?")

	done := make(chan error, 1)
	go func() { done <- f.coord.Solve(context.Background()) }()
	time.Sleep(15 * time.Millisecond)

	require.NoError(t, f.models.Set(context.Background(), "gpt-5.2"))

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	// No stale answer reached the clipboard, only the model announce.
	for _, w := range f.clip.Writes() {
		assert.NotContains(t, w, "FINAL ANSWER")
	}
}

func TestModelSetOfflineWarning(t *testing.T) {
	mock := &MockLLMClient{Results: []mockResult{{Err: context.DeadlineExceeded}}}
	f := newFixture(t, mock, nil)

	require.NoError(t, f.models.Set(context.Background(), "gpt-5.2"))

	msg, _ := f.status.Current()
	assert.Equal(t, "Selected model [gpt-5.2] is offline; please select another.", msg)
	// Persisted anyway.
	assert.Equal(t, "gpt-5.2", f.cfg.Get().LLM.Model)
}

func TestGraphRetryNudgesIntervalAnswer(t *testing.T) {
	noMarkers := "WORK:\nThe curve spans from -3 to 5.\nFINAL ANSWER: [-3, 5)"
	withMarkers := "WORK:\nClosed dot at -3, open dot at 5.\nFINAL ANSWER: [-3, 5)"
	mock := &MockLLMClient{Results: []mockResult{{Text: noMarkers}, {Text: withMarkers}}}
	f := newFixture(t, mock, func(cfg *config.Config) {
		cfg.Flags.GraphRetry = true
	})
	f.clip.SetImagePNG(pngBytes(t))

	require.NoError(t, f.coord.Solve(context.Background()))
	assert.Equal(t, 2, mock.CallCount())
	assert.Contains(t, mock.LastCall().System, "endpoint marker")
}
