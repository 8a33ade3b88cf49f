package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dlyoglab/ipcheck/internal/analysis"
	"github.com/dlyoglab/ipcheck/internal/bundle"
	"github.com/dlyoglab/ipcheck/internal/cache"
	"github.com/dlyoglab/ipcheck/internal/config"
	"github.com/dlyoglab/ipcheck/internal/delivery"
	"github.com/dlyoglab/ipcheck/internal/providers"
	"github.com/dlyoglab/ipcheck/internal/redact"
	"github.com/dlyoglab/ipcheck/internal/report"
	"github.com/dlyoglab/ipcheck/internal/storage"
)

// Response bodies, kept compatible with the deployed endpoint.
const (
	BodySent    = "Report sent."
	BodyNothing = "Nothing to analyze. Report sent."
)

// smtpTimeout bounds a single delivery attempt.
const smtpTimeout = 60 * time.Second

// Request names the bundle for one invocation. Bundle, when set, is used
// as-is and Location only labels the report.
type Request struct {
	Location string
	Bundle   *bundle.Bundle
}

// Status is the structured result of an invocation. The pipeline never
// returns an error or panics; everything is reported here.
type Status struct {
	Code     int               `json:"statusCode"`
	Body     string            `json:"body"`
	RunID    string            `json:"-"`
	Err      error             `json:"-"`
	Outcome  *analysis.Outcome `json:"-"`
	Document *report.Document  `json:"-"`
}

// OK reports whether the invocation delivered a success report.
func (s Status) OK() bool { return s.Code == http.StatusOK && s.Err == nil }

// Pipeline runs bundle analysis end to end. Nil collaborators are built
// from Config on first use.
type Pipeline struct {
	Config    config.Config
	Store     *storage.Store
	Analyzer  providers.Analyzer
	Deliverer delivery.Deliverer
	// Budget defaults to the context deadline, or Config.Budget.Invocation.
	Budget analysis.Budget
	Logger *zap.Logger

	// Sleep is passed to the runner for retry backoff.
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
	NewRunID func() string
}

// Run executes one invocation.
func (p *Pipeline) Run(ctx context.Context, req Request) (st Status) {
	runID := p.newRunID()
	log := p.logger().With(zap.String("run_id", runID))
	meta := report.Meta{RunID: runID, Source: req.Location, GeneratedAt: p.now()}
	if meta.Source == "" && req.Bundle != nil {
		meta.Source = req.Bundle.Name
	}

	analyzer, deliverer, err := p.resolve()
	if err != nil {
		log.Warn("pipeline not configured", zap.Error(err))
		return Status{Code: http.StatusOK, Body: "Not configured: " + err.Error(), RunID: runID, Err: err}
	}
	meta.Provider, meta.Model = analyzer.Name(), analyzer.Model()

	defer func() {
		if rec := recover(); rec != nil {
			fault := &PipelineFault{Stage: StageRuntime, Err: fmt.Errorf("panic: %v", rec), Stack: debug.Stack()}
			st = p.fail(ctx, log, deliverer, meta, fault, runID)
		}
	}()

	log.Info("run started", zap.String("source", meta.Source), zap.String("provider", meta.Provider), zap.String("model", meta.Model))

	b, err := p.load(ctx, req)
	if err != nil {
		return p.fail(ctx, log, deliverer, meta, &PipelineFault{Stage: StageFetch, Err: err}, runID)
	}

	policy := redact.Policy{Secrets: p.Config.Privacy.RedactSecrets, Paths: p.Config.Privacy.RedactPaths}
	b, changed := redact.Bundle(b, policy)
	if changed > 0 {
		log.Info("redacted bundle entries", zap.Int("entries", changed))
	}

	mode, err := analysis.ParseMode(p.Config.Chunking.Mode)
	if err != nil {
		return p.fail(ctx, log, deliverer, meta, &PipelineFault{Stage: StageChunk, Err: err}, runID)
	}
	units := analysis.Chunk(b, p.Config.Chunking.MaxUnits, p.Config.Chunking.MaxUnitChars, mode)
	log.Info("bundle chunked", zap.Int("entries", b.Len()), zap.Int("units", len(units)), zap.String("mode", string(mode)))

	if len(units) == 0 {
		empty := &EmptyInputError{Source: meta.Source}
		log.Info("nothing to analyze", zap.Error(empty))
		out := analysis.Outcome{State: analysis.StateCompleted}
		doc := report.Build(out, meta)
		if err := p.deliver(ctx, deliverer, doc); err != nil {
			return p.fail(ctx, log, undelivered(deliverer, err), meta, &PipelineFault{Stage: StageDeliver, Err: err}, runID)
		}
		return Status{Code: http.StatusOK, Body: BodyNothing, RunID: runID, Err: empty, Outcome: &out, Document: &doc}
	}

	runner := &analysis.Runner{
		Analyzer:    analyzer,
		Budget:      p.budget(ctx),
		Margin:      p.Config.Budget.Margin(),
		CallTimeout: p.Config.Budget.CallTimeout(),
		Retry:       analysis.RetryPolicy{MaxRetries: p.Config.Budget.MaxRetries, BaseDelay: p.Config.Budget.Backoff()},
		Sleep:       p.Sleep,
	}
	out, err := runner.Run(ctx, units)
	logEvents(log, out.Events)
	if err != nil {
		fault := &PipelineFault{Stage: StageAnalyze, Err: err}
		var abort *analysis.AbortError
		if errors.As(err, &abort) {
			fault.Stack = abort.Stack
		}
		return p.fail(ctx, log, deliverer, meta, fault, runID)
	}

	counts := out.Counts()
	log.Info("run finished",
		zap.String("state", string(out.State)),
		zap.Int("parsed", counts[analysis.KindParsed]),
		zap.Int("raw", counts[analysis.KindRaw]),
		zap.Int("failed", counts[analysis.KindFailed]),
		zap.Bool("truncated_for_time", out.TruncatedForTime),
	)

	doc := report.Build(out, meta)
	if err := p.deliver(ctx, deliverer, doc); err != nil {
		failed := p.fail(ctx, log, undelivered(deliverer, err), meta, &PipelineFault{Stage: StageDeliver, Err: err}, runID)
		failed.Outcome = &out
		return failed
	}
	log.Info("report delivered", zap.Strings("to", p.Config.Mail.To))
	return Status{Code: http.StatusOK, Body: BodySent, RunID: runID, Outcome: &out, Document: &doc}
}

// fail builds and delivers the error report. The send outlives ctx's
// cancellation, bounded by smtpTimeout. A failure to deliver it is recorded
// in the status body.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, d delivery.Deliverer, meta report.Meta, fault *PipelineFault, runID string) Status {
	log.Error("pipeline fault", zap.String("stage", fault.Stage), zap.Error(fault.Err), zap.ByteString("stack", fault.Stack))

	doc := report.BuildError(report.Failure{
		Stage:   fault.Stage,
		Message: fault.Err.Error(),
		Detail:  string(fault.Stack),
	}, meta)

	st := Status{
		Code:     http.StatusInternalServerError,
		Body:     "Error: " + fault.Error(),
		RunID:    runID,
		Err:      fault,
		Document: &doc,
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), smtpTimeout)
	defer cancel()
	if err := p.deliver(sendCtx, d, doc); err != nil {
		log.Error("error report not delivered", zap.Error(err))
		st.Body += " (error report not delivered: " + err.Error() + ")"
		st.Err = errors.Join(fault, err)
	}
	return st
}

// undelivered narrows d to the sinks that rejected the report, so sinks
// that accepted it keep it.
func undelivered(d delivery.Deliverer, err error) delivery.Deliverer {
	var partial *delivery.MultiError
	if errors.As(err, &partial) {
		return partial.Failed
	}
	return d
}

// deliver sends doc and converts a panicking deliverer into an error.
func (p *Pipeline) deliver(ctx context.Context, d delivery.Deliverer, doc report.Document) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("delivery panicked: %v", rec)
		}
	}()
	return d.Deliver(ctx, delivery.Message{To: p.Config.Mail.To, Subject: doc.Subject, Document: doc})
}

func (p *Pipeline) load(ctx context.Context, req Request) (bundle.Bundle, error) {
	if req.Bundle != nil {
		return *req.Bundle, nil
	}
	loc, err := storage.ParseURI(req.Location)
	if err != nil {
		return bundle.Bundle{}, err
	}
	store := p.Store
	if store == nil {
		store = storage.New(p.Config.Storage.Region)
	}
	data, err := store.Open(ctx, loc)
	if err != nil {
		return bundle.Bundle{}, err
	}
	return bundle.Parse(loc.Name(), data)
}

// resolve returns the analyzer and deliverer, building them from Config
// when they were not injected. Delivery settings are checked first.
func (p *Pipeline) resolve() (providers.Analyzer, delivery.Deliverer, error) {
	d := p.Deliverer
	if d == nil {
		if err := p.Config.RequireDelivery(); err != nil {
			return nil, nil, err
		}
		m := p.Config.Mail
		d = delivery.SMTP{Host: m.Host, Port: m.Port, Username: m.User, Password: m.Password, From: m.From, Timeout: smtpTimeout}
	}

	a := p.Analyzer
	if a == nil {
		if err := p.Config.RequireAnalysis(); err != nil {
			return nil, nil, err
		}
		client, err := providers.New(providers.Options{
			Provider: p.Config.Provider,
			Model:    p.Config.Model,
			BaseURL:  p.Config.BaseURL,
			APIKey:   p.Config.APIKey,
		})
		if err != nil {
			return nil, nil, err
		}
		c, err := cache.New(p.Config.Cache.Enabled, p.Config.Cache.Dir, p.Config.Cache.TTLSeconds)
		if err != nil {
			return nil, nil, err
		}
		a = cache.Wrap(c, client)
	}
	return a, d, nil
}

func (p *Pipeline) budget(ctx context.Context) analysis.Budget {
	if p.Budget != nil {
		return p.Budget
	}
	return analysis.BudgetFromContext(ctx, p.Config.Budget.Invocation())
}

func logEvents(log *zap.Logger, events []analysis.Event) {
	for _, ev := range events {
		fields := []zap.Field{
			zap.Int("unit", ev.Unit),
			zap.String("label", ev.Label),
			zap.String("kind", string(ev.Kind)),
			zap.Int("attempts", ev.Attempts),
			zap.Duration("elapsed", ev.Elapsed),
			zap.Bool("cached", ev.Cached),
		}
		switch ev.Kind {
		case analysis.KindFailed:
			log.Warn("unit failed", append(fields, zap.String("error", ev.Err))...)
		case analysis.KindSkipped:
			log.Warn("time budget exhausted", fields...)
		default:
			log.Info("unit analyzed", fields...)
		}
	}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) newRunID() string {
	if p.NewRunID != nil {
		return p.NewRunID()
	}
	return uuid.NewString()
}
