package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chatrelay/internal/credential"
	"chatrelay/internal/fallback"
	"chatrelay/internal/gemini"
	"chatrelay/internal/observability"
	"chatrelay/internal/payload"
	"chatrelay/internal/session"
)

// NoResponse ответ на успешный вызов без текста в первом кандидате.
const NoResponse = "No response"

// State состояние автомата отправки.
type State string

const (
	StateIdle              State = "idle"
	StateAttempting        State = "attempting"
	StateSucceeded         State = "succeeded"
	StateExhaustedFallback State = "exhausted_fallback"
	StateFatalFallback     State = "fatal_fallback"
)

// Generator один вызов upstream с заданным ключом.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req gemini.GenerateRequest) (*gemini.Response, error)
}

// Attempt итог одной попытки. Ключ хранится только индексом.
type Attempt struct {
	Credential int
	Outcome    Outcome
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Result итог Send. Reply всегда не пустой.
type Result struct {
	Reply    string
	State    State
	Attempts []Attempt
	// History история после обрезки; именно её стоит сохранять.
	History session.History
}

// Fallback true, если Reply заготовка, а не ответ модели.
func (r Result) Fallback() bool {
	return r.State == StateExhaustedFallback || r.State == StateFatalFallback
}

type Config struct {
	Pool      *credential.Pool
	Generator Generator
	Fallback  *fallback.Responder
	Budget    int
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Engine перебирает ключи пула, пока upstream не ответит, и иначе
// возвращает заготовленный ответ.
type Engine struct {
	pool     *credential.Pool
	gen      Generator
	fallback *fallback.Responder
	budget   int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewEngine(cfg Config) *Engine {
	if cfg.Budget <= 0 {
		cfg.Budget = payload.DefaultBudget
	}
	if cfg.Fallback == nil {
		cfg.Fallback = fallback.NewResponder(nil, "")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		pool:     cfg.Pool,
		gen:      cfg.Generator,
		fallback: cfg.Fallback,
		budget:   cfg.Budget,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Send обрезает историю, собирает запрос один раз и делает не больше
// Size() попыток. Ошибок не возвращает: при неудаче отдаёт заготовку.
func (e *Engine) Send(ctx context.Context, history session.History, persona string) Result {
	trimmed := payload.Trim(history, e.budget)
	res := Result{State: StateIdle, History: trimmed}

	size := 0
	if e.pool != nil {
		size = e.pool.Size()
	}
	if size == 0 || e.gen == nil {
		e.logger.Error("no api keys available")
		return e.finish(res, StateExhaustedFallback, "no_credentials", persona, history)
	}

	req := payload.Build(trimmed)
	res.State = StateAttempting

	for n := 1; n <= size; n++ {
		cred, ok := e.pool.NextAvailable()
		if !ok {
			return e.finish(res, StateExhaustedFallback, "no_credentials", persona, history)
		}
		idx := e.pool.IndexOf(cred)
		e.logger.Debug("attempting upstream call", slog.Int("attempt", n), slog.Int("max_attempts", size), slog.Int("credential", idx))

		start := time.Now()
		resp, err := e.gen.Generate(ctx, string(cred), req)
		attempt := Attempt{Credential: idx, Outcome: Classify(ctx, err), Duration: time.Since(start), Err: err}
		var se *gemini.StatusError
		if errors.As(err, &se) {
			attempt.StatusCode = se.StatusCode
		}
		res.Attempts = append(res.Attempts, attempt)
		e.metrics.ObserveUpstream(string(attempt.Outcome), attempt.Duration)

		switch attempt.Outcome {
		case OutcomeSuccess:
			e.pool.MarkHealthy(cred)
			text, ok := resp.Text()
			if !ok {
				text = NoResponse
			}
			e.logger.Info("upstream call succeeded", slog.Int("attempt", n), slog.Int("credential", idx))
			res.Reply = text
			res.State = StateSucceeded
			return res

		case OutcomeOverloaded:
			e.pool.MarkOverloaded(cred)
			e.logAttempt(slog.LevelWarn, "api key overloaded, trying next key", n, size, attempt)

		case OutcomeNetwork:
			e.logAttempt(slog.LevelWarn, "transport error, trying next key", n, size, attempt)

		case OutcomeFatal:
			e.logAttempt(slog.LevelError, "upstream rejected request", n, size, attempt)
			return e.finish(res, StateFatalFallback, "fatal", persona, history)

		default:
			e.logAttempt(slog.LevelError, "upstream call failed", n, size, attempt)
			return e.finish(res, StateFatalFallback, "aborted", persona, history)
		}
	}

	e.logger.Warn("all api keys failed, using fallback response", slog.Int("attempts", len(res.Attempts)))
	return e.finish(res, StateExhaustedFallback, "exhausted", persona, history)
}

func (e *Engine) finish(res Result, state State, why, persona string, history session.History) Result {
	res.State = state
	res.Reply = e.fallback.Respond(persona, history)
	e.metrics.Fallback(why)
	return res
}

func (e *Engine) logAttempt(level slog.Level, msg string, n, size int, a Attempt) {
	attrs := []any{
		slog.Int("attempt", n),
		slog.Int("max_attempts", size),
		slog.Int("credential", a.Credential),
		slog.String("outcome", string(a.Outcome)),
		slog.String("reason", reason(a.Outcome, a.Err)),
	}
	if a.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status", a.StatusCode))
	}
	if a.Err != nil {
		attrs = append(attrs, slog.String("error", a.Err.Error()))
	}
	e.logger.Log(context.Background(), level, msg, attrs...)
}
