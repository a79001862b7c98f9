package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/replicate"
)

// fakeProvider is an in-memory predictions API. Submission behavior is
// scripted per model version, poll behavior per job id.
type fakeProvider struct {
	t *testing.T

	// submitStatus maps version -> HTTP status for POST /predictions.
	// Versions absent from the map accept the job.
	submitStatus map[string]int
	// initialJob maps version -> prediction returned on successful submit.
	initialJob map[string]replicate.Prediction
	// pollJobs maps job id -> sequence of predictions returned by GET,
	// repeating the last entry once exhausted.
	pollJobs map[string][]replicate.Prediction
	// pollStatus maps job id -> HTTP status codes per poll, 0 meaning 200.
	pollStatus map[string][]int

	submits []string
	polls   map[string]int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		var req struct {
			Version string                    `json:"version"`
			Input   replicate.PredictionInput `json:"input"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, "plain text", req.Input.Transcription)
		assert.False(f.t, req.Input.Translate)
		f.submits = append(f.submits, req.Version)

		if status, ok := f.submitStatus[req.Version]; ok && status != 0 {
			http.Error(w, fmt.Sprintf(`{"detail":"status %d"}`, status), status)
			return
		}
		job, ok := f.initialJob[req.Version]
		if !ok {
			job = replicate.Prediction{ID: "job-" + req.Version, Status: replicate.StatusProcessing}
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(f.t, json.NewEncoder(w).Encode(job))
	})
	mux.HandleFunc("/predictions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodGet, r.Method)
		id := strings.TrimPrefix(r.URL.Path, "/predictions/")
		if f.polls == nil {
			f.polls = make(map[string]int)
		}
		n := f.polls[id]
		f.polls[id] = n + 1

		if codes := f.pollStatus[id]; n < len(codes) && codes[n] != 0 {
			http.Error(w, `{"detail":"poll error"}`, codes[n])
			return
		}
		seq := f.pollJobs[id]
		if !assert.NotEmpty(f.t, seq, "no scripted polls for job %s", id) {
			http.Error(w, "unscripted job", http.StatusNotFound)
			return
		}
		job := seq[min(n, len(seq)-1)]
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(f.t, json.NewEncoder(w).Encode(job))
	})
	return mux
}

func newTestOrchestrator(t *testing.T, f *fakeProvider, versions []string) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client := &replicate.Client{APIBaseURL: srv.URL, Token: "test-token", HTTPClient: srv.Client()}
	o := NewOrchestrator(client, versions)

	var sleeps []time.Duration
	o.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return o, &sleeps
}

func TestTranscribeImmediateSuccess(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusSucceeded, Output: json.RawMessage(`"a quiet meadow"`)},
		},
	}
	o, sleeps := newTestOrchestrator(t, f, []string{"v1", "v2"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "")
	require.NoError(t, err)
	assert.Equal(t, "a quiet meadow", result.Text)
	assert.Equal(t, "v1", result.ModelVersion)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, []string{"v1"}, f.submits)
	assert.Empty(t, *sleeps)
}

func TestTranscribeFallsBackOnSubmissionFailure(t *testing.T) {
	t.Parallel()

	// Scenario: primary model submission returns HTTP 500, fallback
	// succeeds with an object-shaped output.
	f := &fakeProvider{
		submitStatus: map[string]int{"v1": http.StatusInternalServerError},
		initialJob: map[string]replicate.Prediction{
			"v2": {ID: "job-2", Status: replicate.StatusSucceeded, Output: json.RawMessage(`{"transcription":"hello"}`)},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "v2", result.ModelVersion)
	assert.Equal(t, []string{"v1", "v2"}, f.submits)
}

func TestTranscribeInsufficientCreditsAbortsChain(t *testing.T) {
	t.Parallel()

	// Scenario: primary returns HTTP 402; the fallback must never be tried.
	f := &fakeProvider{
		submitStatus: map[string]int{"v1": http.StatusPaymentRequired},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindInsufficientCredits, terr.Kind)
	assert.Equal(t, []string{"v1"}, f.submits)
}

func TestTranscribeRateLimitedAbortsChain(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		submitStatus: map[string]int{"v1": http.StatusTooManyRequests},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindRateLimited, terr.Kind)
	assert.Equal(t, []string{"v1"}, f.submits)
}

func TestTranscribeSubmissionFailureWithoutFallback(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		submitStatus: map[string]int{"v1": http.StatusBadGateway},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindSubmissionFailed, terr.Kind)
}

func TestTranscribePollsUntilSucceeded(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusStarting},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {
				{ID: "job-1", Status: replicate.StatusProcessing},
				{ID: "job-1", Status: replicate.StatusProcessing},
				{ID: "job-1", Status: replicate.StatusSucceeded, Output: json.RawMessage(`{"text":"city of glass"}`)},
			},
		},
	}
	o, sleeps := newTestOrchestrator(t, f, []string{"v1"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "city of glass", result.Text)
	assert.Equal(t, 3, f.polls["job-1"])

	// Backoff: 1.5s, then ×1.25 per check.
	require.Len(t, *sleeps, 3)
	assert.Equal(t, 1500*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, 1875*time.Millisecond, (*sleeps)[1])
}

func TestTranscribeTimeoutAfterPollBudget(t *testing.T) {
	t.Parallel()

	// Scenario: the job stays processing through all poll attempts with no
	// remaining model versions.
	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusProcessing},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {{ID: "job-1", Status: replicate.StatusProcessing}},
		},
	}
	o, sleeps := newTestOrchestrator(t, f, []string{"v1"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindTimeout, terr.Kind)
	assert.Equal(t, 15, f.polls["job-1"])

	require.Len(t, *sleeps, 15)
	// Intervals grow by 1.25x but never exceed the 5s ceiling.
	for i := 1; i < len(*sleeps); i++ {
		assert.GreaterOrEqual(t, (*sleeps)[i], (*sleeps)[i-1])
		assert.LessOrEqual(t, (*sleeps)[i], 5*time.Second)
	}
	assert.Equal(t, 5*time.Second, (*sleeps)[14])
}

func TestTranscribePollExhaustionAdvancesToNextVersion(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusProcessing},
			"v2": {ID: "job-2", Status: replicate.StatusSucceeded, Output: json.RawMessage(`"rescued"`)},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {{ID: "job-1", Status: replicate.StatusProcessing}},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "rescued", result.Text)
	assert.Equal(t, []string{"v1", "v2"}, f.submits)
	assert.Equal(t, 15, f.polls["job-1"])
}

func TestTranscribeJobFailedAdvancesToNextVersion(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusFailed, Error: "audio too short"},
			"v2": {ID: "job-2", Status: replicate.StatusSucceeded, Output: json.RawMessage(`"second try"`)},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "second try", result.Text)
}

func TestTranscribeJobFailedWithoutFallbackCarriesProviderMessage(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusFailed, Error: "audio too short"},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindJobFailed, terr.Kind)
	assert.Contains(t, terr.Message, "audio too short")
}

func TestTranscribeCanceledIsNeverRetried(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusProcessing},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {
				{ID: "job-1", Status: replicate.StatusProcessing},
				{ID: "job-1", Status: replicate.StatusCanceled},
			},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindCanceled, terr.Kind)
	assert.Equal(t, []string{"v1"}, f.submits)
}

func TestTranscribePollHTTPErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusProcessing},
		},
		pollStatus: map[string][]int{
			"job-1": {http.StatusInternalServerError, http.StatusBadGateway},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {
				{ID: "job-1", Status: replicate.StatusProcessing},
				{ID: "job-1", Status: replicate.StatusProcessing},
				{ID: "job-1", Status: replicate.StatusSucceeded, Output: json.RawMessage(`"made it"`)},
			},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1"})

	result, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	require.NoError(t, err)
	assert.Equal(t, "made it", result.Text)
	assert.Equal(t, 3, f.polls["job-1"])
}

func TestTranscribePollInsufficientCreditsIsTerminal(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{
		initialJob: map[string]replicate.Prediction{
			"v1": {ID: "job-1", Status: replicate.StatusProcessing},
		},
		pollStatus: map[string][]int{
			"job-1": {http.StatusPaymentRequired},
		},
		pollJobs: map[string][]replicate.Prediction{
			"job-1": {{ID: "job-1", Status: replicate.StatusProcessing}},
		},
	}
	o, _ := newTestOrchestrator(t, f, []string{"v1", "v2"})

	_, err := o.Transcribe(context.Background(), "https://audio.test/dream.mp3", "en")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindInsufficientCredits, terr.Kind)
	assert.Equal(t, []string{"v1"}, f.submits)
}

func TestNextDelayCapsAtFiveSeconds(t *testing.T) {
	t.Parallel()

	delay := initialPollDelay
	for i := 0; i < 30; i++ {
		delay = nextDelay(delay)
		assert.LessOrEqual(t, delay, 5*time.Second)
	}
	assert.Equal(t, 5*time.Second, delay)
}
