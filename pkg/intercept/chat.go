package intercept

import (
	"context"
	"strings"

	"vurakit/agentveil/pkg/client"
)

// GuardedChat runs chat calls through a Sequencer.
type GuardedChat struct {
	chat *client.ChatClient
	seq  *Sequencer
}

// WrapChat returns chat guarded by s.
func (s *Sequencer) WrapChat(chat *client.ChatClient) *GuardedChat {
	return &GuardedChat{chat: chat, seq: s}
}

// Sequencer returns the sequencer guarding the chat.
func (g *GuardedChat) Sequencer() *Sequencer {
	return g.seq
}

// Chat scans every non-empty message, sends the request, and scans the
// completion.
func (g *GuardedChat) Chat(ctx context.Context, messages []client.Message, opts ...client.ChatOption) (string, error) {
	gens, err := g.seq.Run(ctx, promptsOf(messages), func(ctx context.Context) (Generations, error) {
		text, err := g.chat.Chat(ctx, messages, opts...)
		if err != nil {
			return nil, err
		}
		return Generations{text}, nil
	})
	if err != nil {
		return "", err
	}
	return gens[0], nil
}

// Invoke guards a single user prompt.
func (g *GuardedChat) Invoke(ctx context.Context, prompt string, opts ...client.ChatOption) (string, error) {
	return g.Chat(ctx, []client.Message{client.UserMessage(prompt)}, opts...)
}

// Stream streams a guarded completion, handing each fragment to onFragment
// as it arrives. The completion is scanned once the stream has ended, and
// the full text is returned. A stream that breaks off returns the text
// received so far along with the error.
func (g *GuardedChat) Stream(ctx context.Context, messages []client.Message, onFragment func(string), opts ...client.ChatOption) (string, error) {
	var partial string
	gens, err := g.seq.Run(ctx, promptsOf(messages), func(ctx context.Context) (Generations, error) {
		stream, err := g.chat.Stream(ctx, messages, opts...)
		if err != nil {
			return nil, err
		}
		defer stream.Close()

		var sb strings.Builder
		for stream.Next() {
			fragment := stream.Fragment()
			sb.WriteString(fragment)
			if onFragment != nil {
				onFragment(fragment)
			}
		}
		partial = sb.String()
		if err := stream.Err(); err != nil {
			return nil, err
		}
		return Generations{partial}, nil
	})
	if err != nil {
		return partial, err
	}
	return gens[0], nil
}

func promptsOf(messages []client.Message) []string {
	prompts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Content != "" {
			prompts = append(prompts, m.Content)
		}
	}
	return prompts
}
