package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func TestGenerateText(t *testing.T) {
	var got sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		assert.Empty(t, r.Header.Get("OpenAI-Project"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Professional services for March 2024.\n"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", Organization: "org-1", BaseURL: srv.URL + "/", Model: "test-model", MaxTokens: 50})
	text, err := c.GenerateText(context.Background(), "describe the work")

	require.NoError(t, err)
	assert.Equal(t, "Professional services for March 2024.", text)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 50, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "describe the work", got.Messages[1].Content)
}

func TestGenerateTextSendsProjectHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj-9", r.Header.Get("OpenAI-Project"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	text, err := NewClient(Config{APIKey: "sk-test", Project: "proj-9", BaseURL: srv.URL}).GenerateText(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).GenerateText(context.Background(), "p")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestGenerateTextNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).GenerateText(context.Background(), "p")

	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestGenerateTextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).GenerateText(context.Background(), "p")

	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})

	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultModel, c.cfg.Model)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}
