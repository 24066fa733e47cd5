package main

import (
	"fmt"
	"io"

	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/intercept"

	"github.com/spf13/cobra"
)

type chatOptions struct {
	stream      bool
	guard       bool
	blockOnPII  bool
	model       string
	temperature float64
	maxTokens   int
	system      string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [flags] <prompt|->",
		Short: "Send a chat completion through the proxy",
		Long: `Send a prompt to the chat completion endpoint of the proxy and print the
answer. Use "-" to read the prompt from stdin.

With --guard the prompt and the answer are scanned for PII and the findings
are reported on stderr. --block-on-pii also refuses to send a prompt whose
scan finds PII; it implies --guard.`,
		Example: `  veil chat "What is the capital of France?"
  veil chat --stream --model gpt-4o-mini "Write a haiku"
  git diff | veil chat --block-on-pii -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(a *app) error {
				return runChat(cmd, a, opts, prompt)
			})
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&opts.stream, "stream", false, "print the answer as it streams in")
	fs.BoolVar(&opts.guard, "guard", false, "scan the prompt and the answer for PII")
	fs.BoolVar(&opts.blockOnPII, "block-on-pii", false, "refuse prompts that contain PII (default from config)")
	fs.StringVarP(&opts.model, "model", "m", "", "model name (default from config)")
	fs.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature (default from config)")
	fs.IntVar(&opts.maxTokens, "max-tokens", 0, "completion length limit (default from config)")
	fs.StringVar(&opts.system, "system", "", "system message sent before the prompt")

	return cmd
}

func runChat(cmd *cobra.Command, a *app, opts *chatOptions, prompt string) error {
	fs := cmd.Flags()
	var chatOpts []client.ChatOption
	if opts.model != "" {
		chatOpts = append(chatOpts, client.WithModel(opts.model))
	}
	if fs.Changed("temperature") {
		chatOpts = append(chatOpts, client.WithTemperature(opts.temperature))
	}
	if fs.Changed("max-tokens") {
		chatOpts = append(chatOpts, client.WithMaxTokens(opts.maxTokens))
	}

	messages := []client.Message{client.UserMessage(prompt)}
	if opts.system != "" {
		messages = append([]client.Message{client.SystemMessage(opts.system)}, messages...)
	}

	block := a.cfg.Interception.BlockOnPII
	if fs.Changed("block-on-pii") {
		block = opts.blockOnPII
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if !opts.guard && !block {
		if opts.stream {
			return streamChat(cmd, a, messages, chatOpts)
		}
		text, err := a.client.Chat.Chat(ctx, messages, chatOpts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	seq := a.sequencer(block)
	guarded := seq.WrapChat(a.client.Chat)

	var text string
	var err error
	if opts.stream {
		_, err = guarded.Stream(ctx, messages, func(fragment string) {
			io.WriteString(out, fragment)
		}, chatOpts...)
		if err == nil {
			fmt.Fprintln(out)
		}
	} else {
		text, err = guarded.Chat(ctx, messages, chatOpts...)
		if err == nil {
			fmt.Fprintln(out, text)
		}
	}

	if findings := seq.Findings(); len(findings) > 0 {
		view := cli.NewScanView(client.ScanResult{Found: true, Entities: findings})
		fmt.Fprint(cmd.ErrOrStderr(), view.Text())
	}
	if intercept.IsPIIDetected(err) {
		return cli.NewCommandError("chat", err)
	}
	return err
}

func streamChat(cmd *cobra.Command, a *app, messages []client.Message, opts []client.ChatOption) error {
	stream, err := a.client.Chat.Stream(cmd.Context(), messages, opts...)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	for stream.Next() {
		io.WriteString(out, stream.Fragment())
	}
	fmt.Fprintln(out)
	return stream.Err()
}
