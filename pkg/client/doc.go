// Package client provides the Agent Veil proxy clients.
//
// Three clients share one HTTP core:
//
//   - ScanClient posts text to /scan. Scanning is advisory: Scan never
//     returns an error, and every failure collapses into a ScanOutcome
//     with OK set to false.
//   - ChatClient posts to /v1/chat/completions, either blocking (Chat) or
//     streaming (Stream). Non-2xx statuses and transport failures are
//     returned as *StatusError and *TransportError.
//   - AuditClient posts skill content to /audit and returns an AuditReport.
//
// Every request carries the session headers built by session.Headers.
// Each operation has a fixed timeout (ScanTimeout, ChatTimeout,
// StreamTimeout, AuditTimeout) layered over the caller's context, so a
// shorter caller deadline still wins. Nothing is retried.
//
// Basic usage:
//
//	c, err := client.New(client.Config{
//		ProxyURL: "http://localhost:8080",
//		Session:  session.Context{Role: session.RoleViewer},
//	})
//	if err != nil {
//		return err
//	}
//	text, err := c.Chat.Chat(ctx, []client.Message{client.UserMessage("hi")})
//
// Streaming:
//
//	stream, err := c.Chat.Stream(ctx, msgs)
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//		fmt.Print(stream.Fragment())
//	}
//	return stream.Err()
package client
