package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/toolmind/internal/backoff"
	"github.com/haasonsaas/toolmind/internal/ratelimit"
)

// decideTimeout bounds a single provider call, per spec.md §4.3.
const decideTimeout = 30 * time.Second

const maxAttemptsPerCredential = 5

// reprompt hint appended to the original prompt after a first schema
// validation failure, per spec.md §4.3's "your response did not match"
// wording.
const repromptHintFormat = "\n\nYour previous response did not match the required JSON schema. Return only valid JSON matching this schema, with no surrounding text or code fences:\n%s"

// Oracle implements the decide(prompt, schema) -> JsonObject | Err contract.
// It is the only component in toolmind permitted to call out to an LLM
// provider; the Reasoning Agent (AG) talks exclusively to this type.
type Oracle struct {
	ring    *Ring
	limiter *ratelimit.Limiter
	policy  backoff.BackoffPolicy
}

// Config configures an Oracle.
type Config struct {
	// Credentials is the ordered LLM_KEYS list.
	Credentials []Credential
	// RatePerMinute is the per-credential token bucket capacity
	// (LLM_RATE_PER_MINUTE, default 60).
	RatePerMinute int
}

// New builds an Oracle over the given credentials.
func New(cfg Config) *Oracle {
	rate := cfg.RatePerMinute
	if rate <= 0 {
		rate = 60
	}

	return &Oracle{
		ring: NewRing(cfg.Credentials),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: float64(rate) / 60.0,
			BurstSize:         rate,
			Enabled:           true,
		}),
		// base 500ms, cap 8s, jitter ±20% per spec.md §4.3.
		policy: backoff.BackoffPolicy{InitialMs: 500, MaxMs: 8000, Factor: 2, Jitter: 0.2},
	}
}

// Decide produces the next structured decision for prompt, validated
// against schema (a JSON Schema document describing the expected shape).
func (o *Oracle) Decide(ctx context.Context, prompt string, schema []byte) (JsonObject, error) {
	n := o.ring.Len()
	if n == 0 {
		return nil, exhausted("no credentials configured", nil)
	}

	start := o.ring.Start()
	var lastErr error

	for offset := 0; offset < n; offset++ {
		cred, available, idx := o.ring.At(start + offset)
		if !available {
			continue
		}

		obj, err := o.tryCredential(ctx, cred, idx, prompt, schema)
		if err == nil {
			o.ring.RecordSuccess(idx)
			return obj, nil
		}

		if oracleErr, ok := err.(*Error); ok && oracleErr.Kind == BadOracleResponse {
			// Schema validation failed even after a reprompt: this is not a
			// credential health problem, so don't rotate, just surface it.
			return nil, oracleErr
		}

		lastErr = err
		reason := classifyError(err)
		if reason.advancesRing() {
			o.ring.RecordFailure(idx)
			o.ring.Advance(idx)
		}
	}

	return nil, exhausted(fmt.Sprintf("tried all %d credentials", n), lastErr)
}

// tryCredential drives the retry-with-backoff loop for a single credential:
// up to maxAttemptsPerCredential attempts, honoring its rate-limit bucket
// and the per-attempt timeout, then one schema-validation reprompt before
// giving up on this credential.
func (o *Oracle) tryCredential(ctx context.Context, cred Credential, idx int, prompt string, schema []byte) (JsonObject, error) {
	key := fmt.Sprintf("%s:%d", cred.Provider.Name(), idx)

	var lastErr error
	for attempt := 1; attempt <= maxAttemptsPerCredential; attempt++ {
		if err := o.waitForRateLimit(ctx, key); err != nil {
			return nil, err
		}

		text, err := o.completeWithTimeout(ctx, cred, prompt)
		if err != nil {
			lastErr = err
			reason := classifyError(err)
			if !reason.retryableSameCredential() {
				return nil, err
			}
			if attempt < maxAttemptsPerCredential {
				if sleepErr := backoff.SleepWithBackoff(ctx, o.policy, attempt); sleepErr != nil {
					return nil, sleepErr
				}
			}
			continue
		}

		obj, validateErr := parseAndValidate([]byte(text), schema)
		if validateErr == nil {
			return obj, nil
		}

		// One reprompt with a hint, per spec.md §4.3.
		hinted := prompt + fmt.Sprintf(repromptHintFormat, string(schema))
		text2, err2 := o.completeWithTimeout(ctx, cred, hinted)
		if err2 != nil {
			return nil, err2
		}
		obj2, validateErr2 := parseAndValidate([]byte(text2), schema)
		if validateErr2 == nil {
			return obj2, nil
		}
		return nil, badResponse("response did not match the requested schema after one reprompt", validateErr2)
	}

	return nil, lastErr
}

func (o *Oracle) waitForRateLimit(ctx context.Context, key string) error {
	if o.limiter.Allow(key) {
		return nil
	}
	wait := o.limiter.WaitTime(key)
	return backoff.SleepWithContext(ctx, wait)
}

func (o *Oracle) completeWithTimeout(ctx context.Context, cred Credential, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, decideTimeout)
	defer cancel()
	return cred.Provider.Complete(attemptCtx, cred.Model, decideSystemPrompt, prompt)
}

// decideSystemPrompt instructs every provider call to answer in bare JSON,
// since decide() is defined purely in terms of structured output.
const decideSystemPrompt = "You are a decision-making component of an autonomous reasoning agent. " +
	"Respond with a single JSON object matching the schema you are given. " +
	"Do not include any prose, explanation, or markdown code fences outside the JSON object."
