package reasoner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/toolmind/internal/sandbox"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// oracleDecider is the subset of *oracle.Oracle the agent depends on; a
// narrow local interface so tests can script decisions without a real LLM
// provider.
type oracleDecider interface {
	Decide(ctx context.Context, prompt string, schema []byte) (map[string]any, error)
}

// toolExecutor is the subset of *sandbox.Executor the agent depends on.
type toolExecutor interface {
	Execute(ctx context.Context, tool *models.Tool, args map[string]any) sandbox.Result
}

// Config bounds one question's run, per spec.md §4.4 and §6's configuration
// table.
type Config struct {
	// IterMax is the per-question iteration cap [8].
	IterMax int
	// TMax is the per-question wall-clock cap [120s].
	TMax time.Duration
	// SearchThreshold is the default score cutoff used both to rank
	// fetch_tool candidates and to decide whether search-before-create is
	// satisfied [0.3].
	SearchThreshold float64
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{IterMax: 8, TMax: 120 * time.Second, SearchThreshold: 0.3}
}

func sanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.IterMax <= 0 {
		cfg.IterMax = defaults.IterMax
	}
	if cfg.TMax <= 0 {
		cfg.TMax = defaults.TMax
	}
	if cfg.SearchThreshold <= 0 {
		cfg.SearchThreshold = defaults.SearchThreshold
	}
	return cfg
}

// Agent drives the finite-state machine described in spec.md §4.4 for one
// question, using TS for tool search/creation, EX for tool execution, and OR
// for every decision.
type Agent struct {
	ts  toolstore.Store
	ex  toolExecutor
	or  oracleDecider
	cfg Config
}

// New builds an Agent over the given Tool Store, Sandboxed Executor, and
// Oracle Adapter.
func New(ts toolstore.Store, ex toolExecutor, or oracleDecider, cfg Config) *Agent {
	return &Agent{ts: ts, ex: ex, or: or, cfg: sanitizeConfig(cfg)}
}

// WithConfig returns a copy of the agent with cfg applied, for a caller
// (the Streaming Orchestrator) that wants to override iter_max/t_max for a
// single question per spec.md §4.5's ask() options, without affecting the
// shared agent's defaults.
func (a *Agent) WithConfig(cfg Config) *Agent {
	return &Agent{ts: a.ts, ex: a.ex, or: a.or, cfg: sanitizeConfig(cfg)}
}

// Ask answers one question, streaming its trace to sink and returning once
// a terminal state is reached. It never returns an error itself: every
// failure mode is represented as a terminal event on sink (final, timeout,
// or error), matching SO's "collect the stream" contract for ask_sync.
func (a *Agent) Ask(ctx context.Context, question string, history []models.Event, sink EventSink) {
	em := newEmitter(sink)
	em.start(ctx, question)

	deadline := time.Now().Add(a.cfg.TMax)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	sp := newScratchPad(question, history)
	state := StateRespond

	for iter := 1; ; iter++ {
		if iter > a.cfg.IterMax {
			a.forceExitOnIterCap(ctx, em, sp, iter-1)
			return
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			em.timeout(ctx, "wall-clock budget exceeded", iter-1)
			return
		}

		em.iteration(ctx, iter)

		dec, err := a.decide(ctx, sp, state)
		if err != nil {
			em.error(ctx, err.Error(), string(state))
			return
		}

		if dec.State == StateCreateTool && !sp.canCreate() {
			// search-before-create was violated even by the reprompted
			// decision: this is not recoverable within the iteration.
			em.error(ctx, "create_tool entered without exhausting reuse per search-before-create policy", string(state))
			return
		}

		em.state(ctx, dec.State, dec.Reasoning)

		result, actionPayload, fatal := a.executeAction(ctx, dec, sp)
		if actionPayload != nil {
			em.action(ctx, *actionPayload)
		}
		if fatal != nil {
			em.error(ctx, fatal.Error(), string(dec.State))
			return
		}
		if result != nil {
			em.result(ctx, dec.State, result)
		}

		sp.recordIteration(iterationRecord{
			State:     dec.State,
			Reasoning: dec.Reasoning,
			Action:    dec.Action,
			Result:    fmt.Sprintf("%v", result),
		})

		if dec.State == StateExitResponse {
			confidence := dec.Confidence
			if confidence == "" {
				confidence = sp.confidenceCap()
			}
			em.final(ctx, dec.FinalAnswer, confidence, iter)
			return
		}

		state = dec.State
	}
}

// AskSync runs Ask to completion and returns only the terminal payload: the
// final answer, a timeout summary, or an error summary, per spec.md §4.5's
// ask_sync contract.
func (a *Agent) AskSync(ctx context.Context, question string, history []models.Event) (*models.Event, error) {
	var terminal *models.Event
	collector := collectorSink(func(evt models.Event) {
		switch evt.Kind {
		case models.EventFinal, models.EventTimeout, models.EventError:
			e := evt
			terminal = &e
		}
	})
	a.Ask(ctx, question, history, collector)
	if terminal == nil {
		return nil, errors.New("reasoner: no terminal event produced")
	}
	if terminal.Kind == models.EventError {
		return terminal, fmt.Errorf("reasoner: question ended in error")
	}
	return terminal, nil
}

// collectorSink adapts a plain function to EventSink.
type collectorSink func(models.Event)

func (c collectorSink) Emit(_ context.Context, evt models.Event) { c(evt) }

// decide calls OR for the next transition, validates it against the
// allowed-transitions table, and re-prompts once on violation before
// forcing the error terminal per spec.md §4.4 step 3.
func (a *Agent) decide(ctx context.Context, sp *scratchPad, state State) (*decision, error) {
	allowed := allowedNext[state]
	schema := buildDecisionSchema(allowed)
	prompt := sp.prompt(state)

	dec, err := a.callOracle(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}
	if isAllowed(state, dec.State) {
		return dec, nil
	}

	hint := prompt + fmt.Sprintf("\n\nYour chosen state %q is not a valid transition from %q. Choose one of: %v.", dec.State, state, allowed)
	dec2, err := a.callOracle(ctx, hint, schema)
	if err != nil {
		return nil, err
	}
	if !isAllowed(state, dec2.State) {
		return nil, fmt.Errorf("invalid transition %s -> %s after reprompt", state, dec2.State)
	}
	return dec2, nil
}

func (a *Agent) callOracle(ctx context.Context, prompt string, schema []byte) (*decision, error) {
	obj, err := a.or.Decide(ctx, prompt, schema)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	return parseDecision(obj)
}

// executeAction performs the side effect for dec.State (fetch_tool ->
// TS.search, use_tool -> EX.execute, create_tool -> TS.create), and builds
// the action event payload to emit alongside it. fatal is non-nil only for
// failures that must terminate the question (oracle errors surfaced through
// decide, or an unresolved create_tool name conflict); every other failure
// becomes the iteration's result and the loop continues.
func (a *Agent) executeAction(ctx context.Context, dec *decision, sp *scratchPad) (result any, action *models.ActionPayload, fatal error) {
	switch dec.State {
	case StateFetchTool:
		return a.doFetchTool(ctx, dec, sp)
	case StateUseTool:
		return a.doUseTool(ctx, dec, sp)
	case StateAnalyzeComposite:
		return a.doAnalyzeComposite(dec, sp)
	case StateCreateTool:
		return a.doCreateTool(ctx, dec, sp)
	default:
		// respond and exit_response are pure reasoning states.
		return nil, nil, nil
	}
}

func (a *Agent) doFetchTool(ctx context.Context, dec *decision, sp *scratchPad) (any, *models.ActionPayload, error) {
	query, _ := dec.Action["query"].(string)
	limit := 0
	if l, ok := dec.Action["limit"].(float64); ok {
		limit = int(l)
	}

	payload := &models.ActionPayload{FetchTool: &models.FetchToolAction{Query: query, Limit: limit}}

	hits, err := a.ts.Search(ctx, query, toolstore.SearchOptions{Limit: limit, Threshold: a.cfg.SearchThreshold, ExcludeBugged: true})
	if err != nil {
		sp.recordFailure()
		return map[string]string{"error": err.Error()}, payload, nil
	}
	sp.recordFetch(hits, a.cfg.SearchThreshold)
	return hits, payload, nil
}

func (a *Agent) doUseTool(ctx context.Context, dec *decision, sp *scratchPad) (any, *models.ActionPayload, error) {
	toolRef, _ := dec.Action["tool"].(string)
	args, _ := dec.Action["args"].(map[string]any)

	payload := &models.ActionPayload{UseTool: &models.UseToolAction{Tool: toolRef}}

	tool, err := a.ts.GetByID(ctx, toolRef)
	if err != nil {
		tool, err = a.ts.GetByName(ctx, toolRef)
	}
	if err != nil {
		sp.recordFailure()
		return map[string]string{"error": "tool not found: " + toolRef}, payload, nil
	}

	res := a.ex.Execute(ctx, tool, args)
	if !res.Ok() {
		sp.recordFailure()
		return map[string]string{"error_kind": string(res.Err.Kind), "message": res.Err.Message}, payload, nil
	}
	return res.Value, payload, nil
}

func (a *Agent) doAnalyzeComposite(dec *decision, sp *scratchPad) (any, *models.ActionPayload, error) {
	var candidates []string
	if raw, ok := dec.Action["candidates"].([]any); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				candidates = append(candidates, s)
			}
		}
	}
	if possible, ok := dec.Action["composition_possible"].(bool); ok && !possible {
		sp.recordNoComposition()
	} else if len(candidates) == 0 {
		sp.recordNoComposition()
	}
	return nil, &models.ActionPayload{AnalyzeToolsForComposite: &models.AnalyzeToolsForCompositeAction{Candidates: candidates}}, nil
}

func (a *Agent) doCreateTool(ctx context.Context, dec *decision, sp *scratchPad) (any, *models.ActionPayload, error) {
	specRaw, _ := dec.Action["spec"].(map[string]any)
	spec, specPayload := decodeToolSpec(specRaw)
	payload := &models.ActionPayload{CreateTool: &models.CreateToolAction{Spec: specPayload}}

	created, err := a.ts.Create(ctx, spec)
	if errors.Is(err, toolstore.ErrNameConflict) {
		spec.Name = spec.Name + "_2"
		created, err = a.ts.Create(ctx, spec)
		if errors.Is(err, toolstore.ErrNameConflict) {
			return nil, payload, fmt.Errorf("create_tool: name conflict persisted after rename retry")
		}
	}
	if err != nil {
		sp.recordFailure()
		return map[string]string{"error": err.Error()}, payload, nil
	}

	sp.candidates = append(sp.candidates, candidateTool{Name: created.Name, Description: created.Description})
	return created, payload, nil
}

func decodeToolSpec(raw map[string]any) (models.ToolSpec, models.ToolSpecPayload) {
	name, _ := raw["name"].(string)
	desc, _ := raw["description"].(string)
	category, _ := raw["category"].(string)
	code, _ := raw["code"].(string)

	var tags []string
	if rawTags, ok := raw["tags"].([]any); ok {
		for _, t := range rawTags {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	var params []models.Parameter
	if rawParams, ok := raw["parameters"].([]any); ok {
		for _, rp := range rawParams {
			pm, ok := rp.(map[string]any)
			if !ok {
				continue
			}
			pName, _ := pm["name"].(string)
			pType, _ := pm["type"].(string)
			pDesc, _ := pm["description"].(string)
			pRequired, _ := pm["required"].(bool)
			params = append(params, models.Parameter{
				Name:        pName,
				Type:        models.ParamType(pType),
				Required:    pRequired,
				Description: pDesc,
			})
		}
	}

	spec := models.ToolSpec{Name: name, Description: desc, Category: category, Tags: tags, Parameters: params, Code: code}
	payload := models.ToolSpecPayload{Name: name, Description: desc, Category: category, Tags: tags, Parameters: params, Code: code}
	return spec, payload
}

// forceExitOnIterCap implements spec.md §4.4's iteration-cap policy:
// reaching iter_max forces exit_response with whatever partial evidence
// exists and confidence capped at medium.
func (a *Agent) forceExitOnIterCap(ctx context.Context, em *emitter, sp *scratchPad, iterations int) {
	confidence := sp.confidenceCap()
	if confidence == models.ConfidenceHigh {
		confidence = models.ConfidenceMedium
	}
	answer := "Reached the iteration cap before a conclusive answer was found."
	if len(sp.iterations) > 0 {
		last := sp.iterations[len(sp.iterations)-1]
		answer = fmt.Sprintf("Reached the iteration cap; last observation (%s): %s", last.State, last.Result)
	}
	em.final(ctx, answer, confidence, iterations)
}
