package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, captured *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostMessageReturnsAssistantReply(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, "hi there", &captured)

	c := NewClient(Config{URL: srv.URL, Token: "tok", Model: "test-model"})
	msg, err := c.PostMessage(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "hi there", msg.Content)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, Message{Role: "user", Content: "hello"}, captured.Messages[0])
}

func TestPostMessageSendsRollingHistory(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, "ok", &captured)

	c := NewClient(Config{URL: srv.URL, Model: "m", MaxMessages: 3})
	for i := 0; i < 5; i++ {
		_, err := c.PostMessage(context.Background(), fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}

	// last request carries only the newest three user turns
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "turn 2", captured.Messages[0].Content)
	assert.Equal(t, "turn 4", captured.Messages[2].Content)
	assert.Len(t, c.History(), 3)
}

func TestPostMessageNoAssistantReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{URL: srv.URL, Model: "m"})
	_, err := c.PostMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoAssistantReply)
}

func TestPostMessageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{URL: srv.URL, Model: "m"})
	_, err := c.PostMessage(context.Background(), "hello")
	assert.Error(t, err)
}

func TestConcurrentSetToolsAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{URL: srv.URL, Model: "m"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			c.SetTools([]map[string]interface{}{{"type": "function", "n": i}})
		}
	}()
	for i := 0; i < 20; i++ {
		_, err := c.PostMessage(context.Background(), "hello")
		require.NoError(t, err)
	}
	<-done
}

func TestToolsAreAttached(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, "ok", &captured)

	c := NewClient(Config{URL: srv.URL, Model: "m"})
	c.SetTools([]map[string]interface{}{{"type": "function"}})

	_, err := c.PostMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0]["type"])
}
