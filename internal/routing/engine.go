package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mbd888/payrails/internal/advisor"
	"github.com/mbd888/payrails/internal/idgen"
	"github.com/mbd888/payrails/internal/insights"
	"github.com/mbd888/payrails/internal/metrics"
	"github.com/mbd888/payrails/internal/processor"
	"github.com/mbd888/payrails/internal/risk"
	"github.com/mbd888/payrails/internal/traces"
)

// Scoring terms for freeze avoidance. Capability fit dominates, then
// current health, then the processor's track record with merchant funds.
// Insight adjustments ride on top and are small by construction.
const (
	scoreAmountFits    = 30.0
	scoreAmountTooBig  = -50.0
	scoreCategoryMatch = 25.0
	scoreHealthWeight  = 20.0
	scoreFreezeWeight  = 15.0
)

// Static confidence per decision path. The deterministic rules are well
// understood; detouring around a freeze costs a little certainty.
const (
	confidenceRules           = 0.95
	confidenceFreezeAvoidance = 0.92
)

// defaultFreezeRiskCeiling is the freeze risk above which the default
// selection is abandoned even if the processor is not yet frozen.
const defaultFreezeRiskCeiling = 0.7

const maxFallbacks = 3

// Assessor produces the freeze risk assessment driving processor health.
type Assessor interface {
	Analyze(ctx context.Context) (*risk.Analysis, error)
}

// Advisor is an optional external decision service.
type Advisor interface {
	Decide(ctx context.Context, rc *advisor.Context) (*advisor.Advice, error)
}

// InsightSource supplies market intelligence adjustments. Lookups must not
// block on I/O.
type InsightSource interface {
	Adjustments(processorIDs []string) map[string]insights.Adjustment
}

// Engine routes transactions across the processor table.
type Engine struct {
	registry            *processor.Registry
	assessor            Assessor
	advisor             Advisor
	insights            InsightSource
	rules               []CategoryRule
	defaultProcessor    string
	enterpriseThreshold int64
	freezeRiskCeiling   float64
	logger              *slog.Logger
	now                 func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAdvisor attaches an external decision advisor.
func WithAdvisor(a Advisor) EngineOption {
	return func(e *Engine) { e.advisor = a }
}

// WithInsights attaches a market intelligence source.
func WithInsights(s InsightSource) EngineOption {
	return func(e *Engine) { e.insights = s }
}

// WithRules overrides the category routing table.
func WithRules(rules []CategoryRule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// WithDefaultProcessor sets the processor used when nothing else matches.
func WithDefaultProcessor(id string) EngineOption {
	return func(e *Engine) { e.defaultProcessor = id }
}

// WithEnterpriseThreshold sets the minor-unit amount above which the
// highest-capacity processor is selected regardless of category.
func WithEnterpriseThreshold(cents int64) EngineOption {
	return func(e *Engine) {
		if cents > 0 {
			e.enterpriseThreshold = cents
		}
	}
}

// WithFreezeRiskCeiling sets the freeze risk that triggers avoidance.
func WithFreezeRiskCeiling(ceiling float64) EngineOption {
	return func(e *Engine) {
		if ceiling > 0 {
			e.freezeRiskCeiling = ceiling
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a routing engine over the processor registry.
func NewEngine(registry *processor.Registry, assessor Assessor, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		registry:            registry,
		assessor:            assessor,
		rules:               DefaultCategoryRules(),
		defaultProcessor:    registry.Primary(),
		enterpriseThreshold: 100000, // $1,000
		freezeRiskCeiling:   defaultFreezeRiskCeiling,
		logger:              slog.Default(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !registry.Has(e.defaultProcessor) {
		return nil, fmt.Errorf("routing: default processor %s: %w", e.defaultProcessor, processor.ErrUnknownProcessor)
	}
	return e, nil
}

// Route selects a processor for the request. It always returns a decision
// for a valid request; degraded dependencies narrow the choice but never
// fail it.
func (e *Engine) Route(ctx context.Context, req *Request) (*Decision, error) {
	ctx, span := traces.StartSpan(ctx, "routing.Route")
	defer span.End()

	start := e.now()

	if err := validateRequest(req); err != nil {
		metrics.RouteRejectionsTotal.Inc()
		return nil, err
	}

	analysis, err := e.assessor.Analyze(ctx)
	if err != nil {
		// Unknown risk is not critical risk. Route with neutral health
		// assumptions instead of refusing the payment.
		e.logger.Warn("risk assessment unavailable, routing with neutral health", "error", err)
		analysis = nil
	}
	healths := e.registry.AssessHealth(analysis)

	selected, rule, baseReason := e.selectDefault(req)

	var reasons []string
	reasons = append(reasons, baseReason)

	freezeAvoidance := false
	if h := healths[selected]; h.Frozen() || h.FreezeRisk > e.freezeRiskCeiling {
		if alt, altReason, ok := e.avoidFreeze(req, rule, selected, healths); ok {
			reasons = append(reasons, fmt.Sprintf(
				"avoiding %s (status %s, freeze risk %.2f)", selected, h.Status, h.FreezeRisk))
			reasons = append(reasons, altReason)
			selected = alt
			freezeAvoidance = true
		} else {
			reasons = append(reasons, fmt.Sprintf(
				"no viable alternative to %s despite freeze risk %.2f", selected, h.FreezeRisk))
		}
	}

	mode := ModeRules
	confidence := confidenceRules
	if freezeAvoidance {
		confidence = confidenceFreezeAvoidance
	}

	if e.advisor != nil {
		if advised, advReason, ok := e.consultAdvisor(ctx, req, healths); ok {
			if advised.SelectedProcessor != selected {
				reasons = append(reasons, fmt.Sprintf("advisor override: %s", advReason))
			} else {
				reasons = append(reasons, fmt.Sprintf("advisor concurs: %s", advReason))
			}
			selected = advised.SelectedProcessor
			mode = ModeAdvisor
			if advised.Confidence > 0 && advised.Confidence <= 1 {
				confidence = advised.Confidence
			}
		}
	}

	chain := e.fallbackChain(selected, healths)

	primary := healths[e.registry.Primary()]
	decision := &Decision{
		ID:                idgen.WithPrefix("rte_"),
		SelectedProcessor: selected,
		Confidence:        confidence,
		Reasoning:         strings.Join(reasons, "; "),
		FallbackChain:     chain,
		FreezeAvoidance:   freezeAvoidance,
		DecisionMode:      mode,
		PrimaryStatus:     primary.Status,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
		DecidedAt:         start.UTC(),
	}
	if analysis != nil {
		decision.RiskLevel = analysis.OverallRisk
		decision.FreezeProbability = analysis.FreezeProbability
	}

	metrics.RouteDecisionsTotal.WithLabelValues(selected, mode).Inc()
	metrics.FallbackChainDepth.Observe(float64(len(chain)))
	span.SetAttributes(
		traces.Processor(selected),
		traces.Amount(req.Amount),
		traces.DecisionMode(mode),
	)

	e.logger.Info("route decision",
		"decision_id", decision.ID,
		"processor", selected,
		"mode", mode,
		"freeze_avoidance", freezeAvoidance,
		"fallbacks", chain,
		"amount", req.Amount,
	)

	return decision, nil
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// selectDefault applies the ordered deterministic rules: capacity first,
// then business category, then the configured default.
func (e *Engine) selectDefault(req *Request) (string, *CategoryRule, string) {
	if req.Amount > e.enterpriseThreshold {
		id := e.highestCapacity()
		return id, nil, fmt.Sprintf("amount %d exceeds standard limits, using highest-capacity processor %s", req.Amount, id)
	}

	if rule, ok := matchCategory(e.rules, req.Description); ok && e.registry.Has(rule.Processor) {
		return rule.Processor, &rule, fmt.Sprintf("category %s matched, %s is the best fit", rule.Name, rule.Processor)
	}

	return e.defaultProcessor, nil, fmt.Sprintf("no category matched, using default processor %s", e.defaultProcessor)
}

func (e *Engine) highestCapacity() string {
	best := ""
	var bestMax int64 = -1
	for _, c := range e.registry.Capabilities() {
		if c.MaxAmount > bestMax || (c.MaxAmount == bestMax && c.ID < best) {
			best = c.ID
			bestMax = c.MaxAmount
		}
	}
	return best
}

// avoidFreeze scores every non-frozen processor other than avoid and
// returns the best one. Ties break on processor id so the decision stays
// deterministic.
func (e *Engine) avoidFreeze(req *Request, rule *CategoryRule, avoid string, healths map[string]*processor.Health) (string, string, bool) {
	var adjustments map[string]insights.Adjustment
	if e.insights != nil {
		adjustments = e.insights.Adjustments(e.registry.IDs())
	}

	best := ""
	bestScore := 0.0
	bestResistance := 0.0
	for _, c := range e.registry.Capabilities() {
		if c.ID == avoid {
			continue
		}
		h := healths[c.ID]
		if h.Frozen() {
			continue
		}

		score := scoreAmountTooBig
		if req.Amount <= c.MaxAmount {
			score = scoreAmountFits
		}
		if rule != nil && c.Supports(rule.Name) {
			score += scoreCategoryMatch
		}
		score += (1 - h.FreezeRisk) * scoreHealthWeight
		score += c.FreezeResistance * scoreFreezeWeight
		if adj, ok := adjustments[c.ID]; ok {
			score += adj.Score()
		}

		if best == "" || score > bestScore || (score == bestScore && c.ID < best) {
			best = c.ID
			bestScore = score
			bestResistance = c.FreezeResistance
		}
	}

	if best == "" {
		return "", "", false
	}
	return best, fmt.Sprintf("selected %s (score %.1f, freeze resistance %.2f)", best, bestScore, bestResistance), true
}

// consultAdvisor asks the external advisor for a decision. The advisor may
// only pick from the currently routable processors; anything else is
// rejected and the deterministic choice stands.
func (e *Engine) consultAdvisor(ctx context.Context, req *Request, healths map[string]*processor.Health) (*advisor.Advice, string, bool) {
	primaryID := e.registry.Primary()
	primary := healths[primaryID]

	rc := &advisor.Context{
		Amount:           req.Amount,
		Currency:         req.Currency,
		Description:      req.Description,
		PrimaryProcessor: primaryID,
		PrimaryStatus:    string(primary.Status),
		FreezeRisk:       primary.FreezeRisk,
		ComplexityHint:   req.ComplexityHint,
	}
	for _, c := range e.registry.Capabilities() {
		h := healths[c.ID]
		if h.Frozen() {
			continue
		}
		rc.Available = append(rc.Available, advisor.ProcessorOption{
			ID:               c.ID,
			MaxAmount:        c.MaxAmount,
			BestFor:          c.BestFor,
			FreezeResistance: c.FreezeResistance,
			Status:           string(h.Status),
			FreezeRisk:       h.FreezeRisk,
		})
	}

	advice, err := e.advisor.Decide(ctx, rc)
	if err != nil {
		metrics.AdvisorCallsTotal.WithLabelValues("error").Inc()
		e.logger.Warn("advisor call failed, keeping deterministic selection", "error", err)
		return nil, "", false
	}

	routable := false
	for _, opt := range rc.Available {
		if opt.ID == advice.SelectedProcessor {
			routable = true
			break
		}
	}
	if !routable {
		metrics.AdvisorCallsTotal.WithLabelValues("rejected").Inc()
		e.logger.Warn("advisor selected unroutable processor, keeping deterministic selection",
			"advised", advice.SelectedProcessor)
		return nil, "", false
	}

	metrics.AdvisorCallsTotal.WithLabelValues("ok").Inc()
	return advice, advice.Reasoning, true
}

// fallbackChain returns up to three healthy backups for the selection,
// riskiest first so operators see which backup burns down next.
func (e *Engine) fallbackChain(selected string, healths map[string]*processor.Health) []string {
	type candidate struct {
		id         string
		freezeRisk float64
		resistance float64
	}

	var candidates []candidate
	for _, c := range e.registry.Capabilities() {
		if c.ID == selected {
			continue
		}
		h := healths[c.ID]
		if h.Frozen() {
			continue
		}
		candidates = append(candidates, candidate{
			id:         c.ID,
			freezeRisk: h.FreezeRisk,
			resistance: c.FreezeResistance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.freezeRisk != b.freezeRisk {
			return a.freezeRisk > b.freezeRisk
		}
		if a.resistance != b.resistance {
			return a.resistance > b.resistance
		}
		return a.id < b.id
	})

	chain := make([]string, 0, maxFallbacks)
	for _, c := range candidates {
		chain = append(chain, c.id)
		if len(chain) == maxFallbacks {
			break
		}
	}
	return chain
}
