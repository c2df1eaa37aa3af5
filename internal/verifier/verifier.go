package verifier

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vlmcheck/internal/logging"
	"vlmcheck/internal/vlm"
	"vlmcheck/pkg/types"
)

// ModelClient performs one structured completion. *vlm.Client satisfies it.
type ModelClient interface {
	Complete(ctx context.Context, req vlm.CompletionRequest) (string, error)
}

// Pinger is optionally implemented by a ModelClient to report upstream health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Verifier runs verifications against a shared ModelClient. It is safe for
// concurrent use.
type Verifier struct {
	client ModelClient
	gate   *Gate
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	outcomes map[string]uint64
}

// New builds a Verifier; cfg defaults are applied.
func New(client ModelClient, cfg Config, logger zerolog.Logger) *Verifier {
	cfg = cfg.withDefaults()
	return &Verifier{
		client:   client,
		gate:     NewGate(cfg.MaxConcurrent, cfg.QueueTimeout),
		cfg:      cfg,
		log:      logging.Component(logger, "verifier"),
		now:      time.Now,
		outcomes: make(map[string]uint64),
	}
}

// taskRule bounds the task description in code points.
var taskRule = "required,max=" + strconv.Itoa(MaxTaskLength)

func validateTask(task string) error {
	if err := validate.Var(task, taskRule); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{
				Field:  "task_description",
				Reason: fmt.Sprintf("must be between 1 and %d characters", MaxTaskLength),
			}
		}
		return err
	}
	return nil
}

// Verify decides whether image shows what task describes. Input is validated
// before any slot is taken or upstream call is made. ProcessingTime covers
// the whole call, queueing included, rounded to milliseconds.
func (v *Verifier) Verify(ctx context.Context, image io.Reader, task string) (types.VerificationResponse, error) {
	start := v.now()
	log := v.log.With().Str("verification_id", uuid.NewString()).Logger()

	resp, err := v.verify(ctx, log, start, image, task)

	outcome := Outcome(err)
	verificationsTotal.WithLabelValues(outcome).Inc()
	verificationDuration.WithLabelValues(outcome).Observe(v.now().Sub(start).Seconds())
	v.mu.Lock()
	v.outcomes[outcome]++
	v.mu.Unlock()

	if err != nil {
		ev := log.Error()
		if IsValidation(err) || IsCanceled(err) {
			ev = log.Warn()
		}
		ev.Err(err).Str("outcome", outcome).Msg("verification failed")
	}
	return resp, err
}

func (v *Verifier) verify(ctx context.Context, log zerolog.Logger, start time.Time, image io.Reader, task string) (types.VerificationResponse, error) {
	if err := validateTask(task); err != nil {
		return types.VerificationResponse{}, err
	}
	log.Info().Str("task", logging.Truncate(task, 50)).Msg("starting verification")

	img, err := readImage(image)
	if err != nil {
		return types.VerificationResponse{}, err
	}
	uri, mime, err := EncodeImage(img, v.cfg.DetectMIME)
	if err != nil {
		return types.VerificationResponse{}, err
	}
	log.Debug().Int("image_bytes", len(img)).Str("mime", mime).Msg("image encoded")

	req := vlm.CompletionRequest{
		Model: v.cfg.Model,
		Messages: []vlm.Message{{
			Role:  vlm.RoleUser,
			Parts: []vlm.Part{vlm.TextPart(BuildPrompt(task)), vlm.ImagePart(uri)},
		}},
		Schema:      answerSchema,
		Temperature: v.cfg.Temperature,
		MaxTokens:   v.cfg.MaxTokens,
	}

	answer, err := v.infer(ctx, log, req)
	if err != nil {
		return types.VerificationResponse{}, err
	}
	elapsed := v.now().Sub(start)
	log.Info().Bool("match", answer.Match).Dur("elapsed", elapsed).Msg("verification completed")

	return types.VerificationResponse{
		Match:          answer.Match,
		Reason:         answer.Reason,
		ProcessingTime: roundSeconds(elapsed),
	}, nil
}

// infer holds an admission slot for the model call only.
func (v *Verifier) infer(ctx context.Context, log zerolog.Logger, req vlm.CompletionRequest) (types.ModelAnswer, error) {
	release, err := v.gate.Acquire(ctx)
	if err != nil {
		return types.ModelAnswer{}, err
	}
	defer release()

	raw, err := v.client.Complete(ctx, req)
	if err != nil {
		return types.ModelAnswer{}, err
	}
	log.Info().Str("raw", logging.Truncate(raw, 500)).Msg("model response")
	return ParseAnswer(raw)
}

// Ready reports whether the upstream answers. Clients without Ping are
// assumed ready.
func (v *Verifier) Ready(ctx context.Context) error {
	p, ok := v.client.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Status returns a snapshot of the gate and outcome counters.
func (v *Verifier) Status() types.StatusResponse {
	v.mu.Lock()
	outcomes := make(map[string]uint64, len(v.outcomes))
	for k, n := range v.outcomes {
		outcomes[k] = n
	}
	v.mu.Unlock()
	return types.StatusResponse{
		Model: v.cfg.Model,
		Gate: types.GateStatus{
			Capacity: v.gate.Capacity(),
			InFlight: v.gate.InFlight(),
			Waiting:  v.gate.Waiting(),
			Peak:     v.gate.Peak(),
		},
		Outcomes: outcomes,
	}
}

// Gate exposes the admission gate.
func (v *Verifier) Gate() *Gate { return v.gate }

func roundSeconds(d time.Duration) float64 {
	s := math.Round(d.Seconds()*1000) / 1000
	if s < 0 {
		return 0
	}
	return s
}
