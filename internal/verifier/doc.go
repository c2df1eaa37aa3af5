// Package verifier implements the image/task verification pipeline: input
// validation, image encoding, prompt construction, admission control, the
// schema-constrained model call and strict validation of the model output.
// It is structured into small files by concern:
//
//   - verifier.go: Verifier, Verify and the pipeline steps.
//   - config.go: Config and package defaults; New applies defaults.
//   - gate.go: counting-semaphore admission gate.
//   - prompt.go: BuildPrompt.
//   - encode.go: image reading and data URI encoding.
//   - answer.go: strict ModelAnswer parsing and its JSON schema.
//   - errors.go: failure taxonomy, predicates and status mapping.
//   - metrics.go: Prometheus collectors.
//
// Transports (HTTP, NATS, CLI) should depend on Verify and the predicates in
// errors.go only.
package verifier
