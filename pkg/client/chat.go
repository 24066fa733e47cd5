package client

import (
	"context"

	"vurakit/agentveil/pkg/decode"
	"vurakit/agentveil/pkg/session"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// ChatClient calls the chat completion endpoint.
type ChatClient struct {
	core     *core
	defaults ChatDefaults
}

// NewChatClient creates a standalone chat client.
func NewChatClient(cfg Config) (*ChatClient, error) {
	c, err := newCore(cfg)
	if err != nil {
		return nil, err
	}
	return newChatClient(c, cfg.Defaults), nil
}

// newChatClient fills the unset fields of defaults. A zero struct takes
// every package default; otherwise Temperature 0 is kept as given.
func newChatClient(c *core, defaults ChatDefaults) *ChatClient {
	if defaults == (ChatDefaults{}) {
		defaults = DefaultChatDefaults()
	}
	if defaults.Model == "" {
		defaults.Model = DefaultChatDefaults().Model
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = DefaultChatDefaults().MaxTokens
	}
	return &ChatClient{core: c, defaults: defaults}
}

// Session returns the session attached to chat calls.
func (c *ChatClient) Session() session.Context {
	return c.core.session
}

// Defaults returns the client-level request defaults.
func (c *ChatClient) Defaults() ChatDefaults {
	return c.defaults
}

// NewRequest builds a request from the client defaults, then applies opts
// in order.
func (c *ChatClient) NewRequest(messages []Message, stream bool, opts ...ChatOption) (ChatRequest, error) {
	req := ChatRequest{
		Model:       c.defaults.Model,
		Messages:    messages,
		Temperature: c.defaults.Temperature,
		MaxTokens:   c.defaults.MaxTokens,
		Stream:      stream,
	}
	for _, opt := range opts {
		opt(&req)
	}
	if err := req.Validate(); err != nil {
		return ChatRequest{}, err
	}
	return req, nil
}

// Chat sends a blocking completion request and returns the text of the
// first choice. A response without choices yields "".
func (c *ChatClient) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (text string, err error) {
	req, err := c.NewRequest(messages, false, opts...)
	if err != nil {
		return "", err
	}

	ctx, span, finish := c.core.begin(ctx, EndpointChat, "veil.chat")
	defer func() { finish(err) }()
	span.SetAttributes(
		attribute.String(tracing.AttrModel, req.Model),
		attribute.Bool(tracing.AttrStream, false),
	)

	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	body, _, err := c.core.postRead(ctx, EndpointChat, ChatTimeout, req)
	if err != nil {
		return "", err
	}

	result, err := decode.Completion(body)
	if err != nil {
		return "", err
	}
	if !result.Recognized() {
		c.core.logger.DebugContext(ctx, "completion carried no content", "shape", result.Shape.String())
	}
	return result.Text, nil
}

// Invoke sends prompt as a single user message.
func (c *ChatClient) Invoke(ctx context.Context, prompt string, opts ...ChatOption) (string, error) {
	return c.Chat(ctx, []Message{UserMessage(prompt)}, opts...)
}

// Stream sends a streaming completion request. The status is checked
// before the stream is returned, so a non-2xx answer produces no
// fragments. The caller must Close the stream if it stops reading early;
// the stream closes itself when it ends.
func (c *ChatClient) Stream(ctx context.Context, messages []Message, opts ...ChatOption) (*decode.Stream, error) {
	req, err := c.NewRequest(messages, true, opts...)
	if err != nil {
		return nil, err
	}

	ctx, span, finish := c.core.begin(ctx, EndpointChat, "veil.chat.stream")
	span.SetAttributes(
		attribute.String(tracing.AttrModel, req.Model),
		attribute.Bool(tracing.AttrStream, true),
	)

	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)

	resp, err := c.core.post(ctx, EndpointChat, StreamTimeout, req, session.ContentTypeEventStream)
	if err != nil {
		cancel()
		finish(err)
		return nil, err
	}

	var stream *decode.Stream
	stream = decode.NewStream(resp.Body, decode.OnClose(func() {
		cancel()
		n := stream.Fragments()
		c.core.metrics.RecordStreamFragments(n)
		span.SetAttributes(attribute.Int(tracing.AttrFragments, n))
		finish(stream.Err())
	}))
	return stream, nil
}

// StreamPrompt streams the completion of prompt sent as a single user
// message.
func (c *ChatClient) StreamPrompt(ctx context.Context, prompt string, opts ...ChatOption) (*decode.Stream, error) {
	return c.Stream(ctx, []Message{UserMessage(prompt)}, opts...)
}
