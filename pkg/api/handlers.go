package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/scoring"
	"github.com/yourusername/farklesolver/pkg/solver"
)

// maxSimulatedTurns bounds a single simulation request.
const maxSimulatedTurns = 5_000_000

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	engine  *solver.Engine
	version string
	pool    *WorkerPool
	opts    solver.Options // Defaults for iterations and simulations
}

// NewHandlers creates handlers serving e.
func NewHandlers(e *solver.Engine, version string) *Handlers {
	return &Handlers{engine: e, version: version}
}

// NewHandlersWithPool creates handlers that bound concurrency with pool.
func NewHandlersWithPool(e *solver.Engine, version string, pool *WorkerPool) *Handlers {
	return &Handlers{engine: e, version: version, pool: pool}
}

// requestError carries the HTTP status and code of a failed request.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(code, msg string) error {
	return &requestError{status: http.StatusBadRequest, code: code, msg: msg}
}

var errNotReady = &requestError{status: http.StatusServiceUnavailable, code: "NOT_READY", msg: "no strategy loaded"}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		writeError(w, re.status, re.msg, re.code)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("INVALID_JSON", "invalid JSON")
}

func (h *Handlers) current() (*solver.Strategy, error) {
	if h.engine == nil {
		return nil, errNotReady
	}
	return h.engine.Current(), nil
}

func parseRoll(faces []int) (dice.Sample, error) {
	if len(faces) == 0 {
		return dice.Sample{}, badRequest("MISSING_ROLL", "roll is required")
	}
	s, err := dice.SampleFromInts(faces)
	if err != nil {
		return dice.Sample{}, badRequest("INVALID_ROLL", err.Error())
	}
	if s.Len() == 0 {
		return dice.Sample{}, badRequest("MISSING_ROLL", "no dice rolled")
	}
	return s, nil
}

func parseScore(v int) (scoring.Points, error) {
	if v < 0 {
		return 0, badRequest("INVALID_SCORE", fmt.Sprintf("score %d is negative", v))
	}
	return scoring.Clamp(v), nil
}

func parseDice(s string) (dice.Mask, error) {
	if s == "" {
		return dice.AllDice, nil
	}
	m, err := dice.ParseMask(s)
	if err != nil {
		return 0, badRequest("INVALID_DICE", err.Error())
	}
	return m, nil
}

// ScoreRoll scores the roll in req. It needs no strategy.
func ScoreRoll(req ScoreRequest) (ScoreResponse, error) {
	roll, err := parseRoll(req.Roll)
	if err != nil {
		return ScoreResponse{}, err
	}
	h := scoring.Count(roll)
	combos, left := scoring.Explain(h)
	resp := ScoreResponse{
		Roll:         roll.Ints(),
		Score:        int(scoring.Score(h)),
		BestScore:    int(scoring.BestScore(h)),
		Busted:       !scoring.NotBusted(h),
		Selection:    scoring.BestSelection(roll).Ints(),
		Combinations: make([]CombinationResponse, len(combos)),
		Leftover:     left.Len(),
	}
	for i, c := range combos {
		resp.Combinations[i] = CombinationResponse{
			Kind:   c.Kind.String(),
			Face:   int(c.Face),
			Count:  int(c.Count),
			Points: int(c.Points),
		}
	}
	return resp, nil
}

func (h *Handlers) query(req QueryRequest) (QueryResponse, error) {
	s, err := h.current()
	if err != nil {
		return QueryResponse{}, err
	}
	return QueryStrategy(s, req)
}

// QueryStrategy answers req from s.
func QueryStrategy(s *solver.Strategy, req QueryRequest) (QueryResponse, error) {
	score, err := parseScore(req.Score)
	if err != nil {
		return QueryResponse{}, err
	}
	mask, err := parseDice(req.Dice)
	if err != nil {
		return QueryResponse{}, err
	}
	return QueryResponse{
		Score:           int(score),
		Dice:            mask.String(),
		Expected:        s.QueryScore(score, mask),
		BustProbability: s.BustProbability(mask),
		Generation:      s.N(),
	}, nil
}

func (h *Handlers) decide(req DecisionRequest) (DecisionResponse, error) {
	s, err := h.current()
	if err != nil {
		return DecisionResponse{}, err
	}
	return DecideRoll(s, req)
}

// DecideRoll returns s's move for the roll in req.
func DecideRoll(s *solver.Strategy, req DecisionRequest) (DecisionResponse, error) {
	score, err := parseScore(req.Score)
	if err != nil {
		return DecisionResponse{}, err
	}
	roll, err := parseRoll(req.Roll)
	if err != nil {
		return DecisionResponse{}, err
	}

	d := s.QueryDecision(score, roll)
	resp := DecisionResponse{
		Roll:       roll.Ints(),
		Keep:       d.Keep.Ints(),
		KeepScore:  int(scoring.Score(scoring.Count(d.Keep))),
		Continue:   d.Continue,
		Bust:       d.Bust,
		Terminate:  d.Terminate,
		Hold:       d.Hold,
		Generation: s.N(),
	}
	if d.Continue && !d.Bust {
		resp.Remaining = solver.Remaining(roll, d.Keep).String()
	}
	return resp, nil
}

// Health handles GET /api/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.engine != nil,
	}
	if h.engine != nil {
		resp.Generation = h.engine.Current().N()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	s, err := h.current()
	if err != nil {
		writeRequestError(w, err)
		return
	}
	resp := StatusResponse{
		Generation:  s.N(),
		Running:     h.engine.Running(),
		Fingerprint: fmt.Sprintf("%016x", s.Fingerprint()),
	}
	for _, d := range s.Dice() {
		p := d.Probabilities()
		resp.Dice = append(resp.Dice, DieInfo{Probabilities: p[:], ExpectedRoll: d.ExpectedRoll()})
	}
	if h.pool != nil {
		resp.Pool = h.pool.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// acquireQuery takes a query slot when a pool is configured. The returned
// function releases it.
func (h *Handlers) acquireQuery(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.pool == nil {
		return func() {}, true
	}
	if err := h.pool.AcquireQuery(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return nil, false
	}
	return h.pool.ReleaseQuery, true
}

// Score handles POST /api/score.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireQuery(w, r)
	if !ok {
		return
	}
	defer release()

	var req ScoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	resp, err := ScoreRoll(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Query handles POST /api/query.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireQuery(w, r)
	if !ok {
		return
	}
	defer release()

	var req QueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	resp, err := h.query(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Decision handles POST /api/decision.
func (h *Handlers) Decision(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireQuery(w, r)
	if !ok {
		return
	}
	defer release()

	var req DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	resp, err := h.decide(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// startIteration starts building req.Generations further generations.
func (h *Handlers) startIteration(req IterateRequest) (IterateResponse, <-chan error, error) {
	s, err := h.current()
	if err != nil {
		return IterateResponse{}, nil, err
	}
	if req.Generations < 0 {
		return IterateResponse{}, nil, badRequest("INVALID_GENERATIONS", "generations must not be negative")
	}
	gens := max(req.Generations, 1)
	opts := h.opts
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}

	done, err := h.engine.Advance(gens, opts)
	if errors.Is(err, solver.ErrBusy) {
		return IterateResponse{}, nil, &requestError{status: http.StatusConflict, code: "ITERATION_RUNNING", msg: err.Error()}
	}
	if err != nil {
		return IterateResponse{}, nil, err
	}
	log.Info().Int("from", s.N()).Int("target", s.N()+gens).Msg("iteration-started")
	return IterateResponse{From: s.N(), Target: s.N() + gens}, done, nil
}

// logIteration logs the outcome of an iteration started over the API.
func logIteration(done <-chan error, target int) {
	if err := <-done; err != nil {
		log.Error().Err(err).Int("target", target).Msg("iteration-failed")
		return
	}
	log.Info().Int("generation", target).Msg("iteration-finished")
}

// Iterate handles POST /api/iterate. The iteration runs in the background;
// the current generation keeps being served until the next one is complete.
func (h *Handlers) Iterate(w http.ResponseWriter, r *http.Request) {
	var req IterateRequest
	if err := decodeBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	resp, done, err := h.startIteration(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	go logIteration(done, resp.Target)
	writeJSON(w, http.StatusAccepted, resp)
}

// Simulate handles POST /api/simulate.
func (h *Handlers) Simulate(w http.ResponseWriter, r *http.Request) {
	// Simulations are CPU-intensive
	if h.pool != nil {
		if err := h.pool.AcquireSimulation(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
			return
		}
		defer h.pool.ReleaseSimulation()
	}

	var req SimulateRequest
	if err := decodeBody(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	s, err := h.current()
	if err != nil {
		writeRequestError(w, err)
		return
	}
	start, err := parseScore(req.Start)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if req.Turns < 0 || req.Turns > maxSimulatedTurns {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("turns must be between 0 and %d", maxSimulatedTurns), "INVALID_TURNS")
		return
	}

	opts := solver.DefaultSimOptions()
	if req.Turns > 0 {
		opts.Turns = req.Turns
	}
	if req.MaxRolls > 0 {
		opts.MaxRolls = req.MaxRolls
	}
	opts.Start = start
	opts.Seed = req.Seed
	opts.Workers = h.opts.Workers

	res := solver.Simulate(s, opts)
	writeJSON(w, http.StatusOK, SimulateResponse{
		Turns:      res.Turns,
		Mean:       res.Mean,
		StdDev:     res.StdDev,
		CI95:       res.CI,
		BustRate:   res.BustRate,
		MeanRolls:  res.MeanRolls,
		MaxGain:    res.MaxGain,
		Expected:   s.QueryScore(start, dice.AllDice),
		Generation: s.N(),
	})
}
