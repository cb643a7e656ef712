package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

const fullResponse = `Here is the plan.
### EXECUTIVE SUMMARY ###
A 40 acre wildfire is spreading east at 3.4 km/h.
### SITUATION OVERVIEW ###
Two paragraphs of detail.
### COMMUNICATION TEMPLATES (ENGLISH) ###
Evacuate via Highway 410.
### COMMUNICATION TEMPLATES (PUNJABI) ###
ਹਾਈਵੇ 410 ਰਾਹੀਂ ਖਾਲੀ ਕਰੋ।
### COMMUNICATION TEMPLATES (HINDI) ###
हाईवे 410 से निकलें।`

func TestParseSections_Full(t *testing.T) {
	s := ParseSections(fullResponse)

	assert.Equal(t, 5, s.Found)
	assert.Equal(t, "A 40 acre wildfire is spreading east at 3.4 km/h.", s.Summary)
	assert.Equal(t, "Two paragraphs of detail.", s.Overview)
	assert.Equal(t, "Evacuate via Highway 410.", s.Templates[models.LangEnglish])
	assert.Equal(t, "ਹਾਈਵੇ 410 ਰਾਹੀਂ ਖਾਲੀ ਕਰੋ।", s.Templates[models.LangPunjabi])
	assert.Equal(t, "हाईवे 410 से निकलें।", s.Templates[models.LangHindi])
}

func TestParseSections_MissingHeadersAreUnavailable(t *testing.T) {
	text := "###executive summary###\nShort summary.\n### COMMUNICATION TEMPLATES (HINDI) ###\nनमस्ते"
	s := ParseSections(text)

	assert.Equal(t, 2, s.Found)
	assert.Equal(t, "Short summary.", s.Summary)
	assert.Equal(t, Unavailable, s.Overview)
	assert.Equal(t, Unavailable, s.Templates[models.LangEnglish])
	assert.Equal(t, Unavailable, s.Templates[models.LangPunjabi])
	assert.Equal(t, "नमस्ते", s.Templates[models.LangHindi])
}

func TestParseSections_NoHeaders(t *testing.T) {
	s := ParseSections("I cannot help with that.")
	assert.Zero(t, s.Found)
	assert.Equal(t, Unavailable, s.Summary)
}

func TestBuildPrompt(t *testing.T) {
	d := models.Disaster{
		Kind:     models.KindWildfire,
		Location: models.Location{Lat: 43.7315, Lon: -79.8620},
		Severity: models.SeverityHigh,
		Metadata: map[string]any{"description": "Brush fire near Heart Lake"},
	}
	results := map[string]models.StageResult{
		models.StageRouting: {"primary_route": "Highway 410"},
		models.StageDamage:  {"affected_area_km2": 0.16},
		"shelters":          {"open": 3},
	}

	prompt, err := BuildPrompt(d, results)
	require.NoError(t, err)

	assert.Contains(t, prompt, "**wildfire** of **high** severity")
	assert.Contains(t, prompt, "43.7315, -79.8620")
	assert.Contains(t, prompt, "Brush fire near Heart Lake")
	assert.Contains(t, prompt, "Highway 410")
	for _, h := range []string{HeaderSummary, HeaderOverview, HeaderEnglish, HeaderPunjabi, HeaderHindi} {
		assert.Contains(t, prompt, h)
	}

	damage := strings.Index(prompt, "AGENT 1: DAMAGE ASSESSMENT")
	routing := strings.Index(prompt, "AGENT 2: EVACUATION ROUTING")
	extra := strings.Index(prompt, "AGENT 3: SHELTERS")
	assert.True(t, damage >= 0 && damage < routing && routing < extra)
}

func chatServer(t *testing.T, status int, content string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "RapidResponse", r.Header.Get("X-Title"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "anthropic/claude-3.5-sonnet", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "gen-1",
			"object":  "chat.completion",
			"choices": []any{},
		}
		if content != "" {
			resp["choices"] = []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url, key string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:   key,
		URL:      url + "/chat/completions",
		Model:    "anthropic/claude-3.5-sonnet",
		SiteName: "RapidResponse",
	})
}

func TestOpenAIClient_Success(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, fullResponse, &hits)
	defer srv.Close()

	text, err := newTestClient(srv.URL, "sk-test").CompleteChat(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, fullResponse, text)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIClient_MissingCredentialMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, fullResponse, &hits)
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").CompleteChat(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrCredentialMissing)
	assert.Equal(t, "credential not configured", err.Error())
	assert.Zero(t, hits.Load())
}

func TestOpenAIClient_Failures(t *testing.T) {
	var hits atomic.Int32

	srv := chatServer(t, http.StatusBadGateway, "", &hits)
	_, err := newTestClient(srv.URL, "sk-test").CompleteChat(context.Background(), "prompt")
	srv.Close()
	require.Error(t, err)

	srv = chatServer(t, http.StatusOK, "", &hits)
	_, err = newTestClient(srv.URL, "sk-test").CompleteChat(context.Background(), "prompt")
	srv.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

type fakeClient struct {
	text string
	err  error
}

func (f fakeClient) CompleteChat(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func TestSynthesizer(t *testing.T) {
	d := models.Disaster{Kind: models.KindFlood, Severity: models.SeverityModerate}
	results := map[string]models.StageResult{
		models.StageDamage:     {"affected_area_km2": 2.5},
		models.StagePrediction: {"status": "not_modelled"},
	}

	t.Run("success", func(t *testing.T) {
		s := NewSynthesizer(fakeClient{text: fullResponse}, observability.NewMetricsForTesting(), nil)
		plan, err := s.Synthesize(context.Background(), d, results)
		require.NoError(t, err)
		assert.False(t, plan.Fallback)
		assert.Equal(t, models.SourceLive, plan.Source)
		assert.NotEmpty(t, plan.Summary)
		assert.Equal(t, 2.5, plan.AffectedAreas["affected_area_km2"])
		assert.Equal(t, "not_modelled", plan.TimelinePredictions["status"])
	})

	t.Run("credential", func(t *testing.T) {
		s := NewSynthesizer(fakeClient{err: ErrCredentialMissing}, nil, nil)
		_, err := s.Synthesize(context.Background(), d, results)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrSynthesis))
		assert.ErrorIs(t, err, ErrCredentialMissing)
		assert.Contains(t, err.Error(), "credential not configured")
	})

	t.Run("transport", func(t *testing.T) {
		s := NewSynthesizer(fakeClient{err: errors.New("connection reset")}, nil, nil)
		_, err := s.Synthesize(context.Background(), d, results)
		assert.True(t, models.IsKind(err, models.ErrSynthesis))
		assert.Contains(t, err.Error(), "LLM request")
	})

	t.Run("unparseable", func(t *testing.T) {
		s := NewSynthesizer(fakeClient{text: "no structure here"}, nil, nil)
		_, err := s.Synthesize(context.Background(), d, results)
		assert.True(t, models.IsKind(err, models.ErrSynthesis))
	})

	t.Run("partial", func(t *testing.T) {
		s := NewSynthesizer(fakeClient{text: HeaderSummary + "\nOnly a summary."}, nil, nil)
		plan, err := s.Synthesize(context.Background(), d, results)
		require.NoError(t, err)
		assert.Equal(t, "Only a summary.", plan.Summary)
		assert.Equal(t, Unavailable, plan.Overview)
	})
}
