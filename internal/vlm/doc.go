// Package vlm talks to an OpenAI-compatible vision-language model server
// (vLLM, llama.cpp server, ...). A single Client is created at startup,
// shared by all requests and closed at shutdown.
//
// Files:
//
//   - client.go: Client, Config, Complete and the retry loop.
//   - request.go: Message/Part/Schema types and their translation to
//     chat-completion parameters.
//   - schema.go: JSON schema reflection for structured output.
//   - errors.go: UnavailableError, ProtocolError and predicates.
//   - metrics.go: Prometheus collectors for upstream attempts.
package vlm
