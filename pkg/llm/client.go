package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/carlmjohnson/requests"
	log "github.com/pion/ion-log"
)

// DefaultMaxMessages caps the rolling history when the config gives
// no limit.
const DefaultMaxMessages = 20

// ErrNoAssistantReply is returned when the endpoint answered but the
// response carried no assistant message.
var ErrNoAssistantReply = errors.New("llm: response carries no assistant message")

// Config for the chat-completions endpoint.
type Config struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Model       string `mapstructure:"model"`
	MaxMessages int    `mapstructure:"max_messages"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                   `json:"model"`
	Messages []Message                `json:"messages"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client posts chat completions to an OpenAI-style endpoint. It keeps
// a rolling history of the user turns it sent, capped at MaxMessages
// with the oldest dropped first. Pure request/response glue: nothing
// in the room engine blocks on it.
type Client struct {
	url         string
	token       string
	model       string
	maxMessages int
	tools       []map[string]interface{}
	hc          *http.Client

	lock     sync.Mutex
	messages []Message
}

// NewClient creates a client
func NewClient(conf Config) *Client {
	maxMessages := conf.MaxMessages
	if maxMessages == 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Client{
		url:         conf.URL,
		token:       conf.Token,
		model:       conf.Model,
		maxMessages: maxMessages,
	}
}

// SetTools attaches tool definitions sent with every completion.
func (c *Client) SetTools(tools []map[string]interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.tools = tools
}

// SetHTTPClient overrides the transport, mainly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.hc = hc
}

// PostMessage appends one user turn and posts the history. It returns
// the assistant message when the response has the expected chat shape.
func (c *Client) PostMessage(ctx context.Context, content string) (*Message, error) {
	history, tools := c.record(Message{Role: "user", Content: content})

	body := &chatRequest{
		Model:    c.model,
		Messages: history,
		Tools:    tools,
	}

	var reply chatResponse
	rb := requests.URL(c.url).
		Bearer(c.token).
		Accept("application/json").
		BodyJSON(body).
		ToJSON(&reply)
	if c.hc != nil {
		rb = rb.Client(c.hc)
	}
	if err := rb.Fetch(ctx); err != nil {
		log.Errorf("llm: post to %s failed: %v", c.url, err)
		return nil, err
	}

	if len(reply.Choices) == 0 || reply.Choices[0].Message.Role != "assistant" {
		return nil, ErrNoAssistantReply
	}
	msg := reply.Choices[0].Message
	return &msg, nil
}

// History returns a copy of the recorded turns.
func (c *Client) History() []Message {
	c.lock.Lock()
	defer c.lock.Unlock()
	history := make([]Message, len(c.messages))
	copy(history, c.messages)
	return history
}

// record appends a turn, enforces the cap and returns the history and
// tools snapshots to post. Tools are read under the same lock that
// SetTools writes them under; the slice is only ever replaced whole.
func (c *Client) record(msg Message) ([]Message, []map[string]interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.messages = append(c.messages, msg)
	if c.maxMessages > 0 && len(c.messages) > c.maxMessages {
		overflow := len(c.messages) - c.maxMessages
		c.messages = c.messages[overflow:]
	}

	history := make([]Message, len(c.messages))
	copy(history, c.messages)
	return history, c.tools
}
