// Package decode turns chat-completion responses from the Agent Veil proxy
// into plain text.
//
// Two response shapes are supported.
//
// # Blocking
//
// Completion extracts choices[0].message.content from a JSON body. The
// result is tagged with its Shape: ShapeRecognized when the content was
// found, ShapeDegenerate otherwise. A degenerate body (no choices, an empty
// choices array, a missing message) decodes to empty text rather than an
// error. Only a body that is not JSON at all is an error.
//
//	result, err := decode.Completion(body)
//	if err != nil {
//	    return err // *decode.SyntaxError
//	}
//	fmt.Println(result.Text)
//
// # Streaming
//
// Stream is a pull iterator over a Server-Sent Events body. Each call to
// Next reads lines until it finds a "data: " frame whose JSON payload has a
// choices[0].delta.content string, and yields it. The "[DONE]" sentinel
// ends the stream. Frames that are not valid JSON are skipped, so
// heartbeats and partial frames never abort a stream in progress.
//
//	stream := decode.NewStream(resp.Body)
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Fragment())
//	}
//	if err := stream.Err(); err != nil {
//	    return err // *decode.ReadError
//	}
//
// The stream closes its body when it reaches the sentinel, EOF or a read
// error. Callers that stop early must call Close to release the connection.
package decode
