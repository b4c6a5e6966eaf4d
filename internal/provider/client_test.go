package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"chartsight/internal/config"
)

func chatOK(content string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestChatJSONSuccess(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		chatOK(`{"decision":"hold"}`)(w, r)
	}))
	defer srv.Close()

	c := &Client{Label: Groq, BaseURL: srv.URL, APIKey: "gsk_secret", Model: "test-model"}
	content, err := c.ChatJSON(context.Background(), ChatRequest{
		Purpose:     "decision",
		System:      "system prompt",
		User:        "user prompt",
		Temperature: 0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"decision":"hold"}`, content)
	assert.Equal(t, "Bearer gsk_secret", gotAuth)

	body := string(gotBody)
	assert.Equal(t, "test-model", gjson.Get(body, "model").String())
	assert.Equal(t, "json_object", gjson.Get(body, "response_format.type").String())
	assert.Equal(t, "system", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "user prompt", gjson.Get(body, "messages.1.content").String())
}

func TestChatJSONAttachesImageParts(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		chatOK(`{}`)(w, r)
	}))
	defer srv.Close()

	c := &Client{Label: Groq, BaseURL: srv.URL, APIKey: "k", Model: "m"}
	_, err := c.ChatJSON(context.Background(), ChatRequest{
		User:   "look at this",
		Images: []string{"data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)

	body := string(gotBody)
	assert.Equal(t, "text", gjson.Get(body, "messages.0.content.0.type").String())
	assert.Equal(t, "image_url", gjson.Get(body, "messages.0.content.1.type").String())
	assert.Equal(t, "data:image/png;base64,AAAA", gjson.Get(body, "messages.0.content.1.image_url.url").String())
}

func TestChatJSONRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		chatOK(`{"ok":true}`)(w, r)
	}))
	defer srv.Close()

	c := &Client{Label: OpenAI, BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 2}
	content, err := c.ChatJSON(context.Background(), ChatRequest{User: "u"})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatJSONGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := &Client{Label: OpenAI, BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 3}
	_, err := c.ChatJSON(context.Background(), ChatRequest{User: "u"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEndpointNormalization(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.example.com/v1", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		c := &Client{BaseURL: tc.base}
		assert.Equal(t, tc.want, c.endpoint())
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "<none>", maskKey(""))
	assert.Equal(t, "****", maskKey("abc"))
	assert.Equal(t, "****6789", maskKey("gsk_123456789"))
}

func TestFactoryDefaults(t *testing.T) {
	f := NewFactory(config.ProvidersConfig{})
	keys := Keys{Groq: "gsk_0123456789", OpenAI: "sk-x"}

	groq := f.Vision(Groq, keys)
	require.NotNil(t, groq)
	assert.Equal(t, defaultGroqBaseURL, groq.BaseURL)
	assert.Equal(t, defaultGroqVisionModel, groq.Model)

	dec := f.Decision(OpenAI, keys, "auto")
	require.NotNil(t, dec)
	assert.Equal(t, defaultOpenAIModel, dec.Model)

	assert.Nil(t, f.Decision(OpenRouter, keys, ""))
	assert.Nil(t, f.Vision("mystery", keys))
}

func TestGroqKeyLooksValid(t *testing.T) {
	assert.True(t, GroqKeyLooksValid("gsk_0123456789abc"))
	assert.False(t, GroqKeyLooksValid("sk-0123456789abc"))
	assert.False(t, GroqKeyLooksValid(""))
}
