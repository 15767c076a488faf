// Package api serves a computed Farkle strategy over HTTP/JSON and
// websockets.
package api

// Rolls travel as arrays of up to six face values, 0 marking an empty slot;
// dice masks travel in their six-character form, e.g. "110100".

// ============================================================================
// Request Types
// ============================================================================

// ScoreRequest is the request body for scoring a roll.
type ScoreRequest struct {
	Roll []int `json:"roll"` // Face values (0 = empty slot)
}

// QueryRequest asks for the expected additional score of a state.
type QueryRequest struct {
	Score int    `json:"score"` // Points banked this turn
	Dice  string `json:"dice"`  // Mask of the dice left to roll ("" = all six)
}

// DecisionRequest asks what to do with a roll.
type DecisionRequest struct {
	Score int   `json:"score"` // Points banked this turn before the roll
	Roll  []int `json:"roll"`  // Face values (0 = empty slot)
}

// IterateRequest starts building further generations.
type IterateRequest struct {
	Generations int `json:"generations,omitempty"` // Generations to add (default 1)
	Workers     int `json:"workers,omitempty"`     // Table fill workers (0 = server default)
}

// SimulateRequest plays turns with the current strategy.
type SimulateRequest struct {
	Turns    int    `json:"turns,omitempty"`     // Turns to play (default 10000)
	Start    int    `json:"start,omitempty"`     // Points banked before each turn
	Seed     uint64 `json:"seed,omitempty"`      // Random seed (0 = random)
	MaxRolls int    `json:"max_rolls,omitempty"` // Rolls after which a turn stops (default 100)
}

// ============================================================================
// Response Types
// ============================================================================

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Ready      bool   `json:"ready"`
	Generation int    `json:"generation,omitempty"`
}

// DieInfo describes one die of the model.
type DieInfo struct {
	Probabilities []float64 `json:"probabilities"`
	ExpectedRoll  float64   `json:"expected_roll"`
}

// StatusResponse describes the strategy being served.
type StatusResponse struct {
	Generation  int       `json:"generation"`
	Running     bool      `json:"running"` // A newer generation is being built
	Fingerprint string    `json:"fingerprint"`
	Dice        []DieInfo `json:"dice"`
	Pool        PoolStats `json:"pool"`
}

// CombinationResponse is one scoring group of a hand.
type CombinationResponse struct {
	Kind   string `json:"kind"`
	Face   int    `json:"face,omitempty"`
	Count  int    `json:"count"`
	Points int    `json:"points"`
}

// ScoreResponse scores a roll.
type ScoreResponse struct {
	Roll         []int                 `json:"roll"`
	Score        int                   `json:"score"`      // Every die must score, else 0
	BestScore    int                   `json:"best_score"` // Best hand, unused dice ignored
	Busted       bool                  `json:"busted"`
	Selection    []int                 `json:"selection"` // Dice forming the best hand
	Combinations []CombinationResponse `json:"combinations"`
	Leftover     int                   `json:"leftover"` // Dice that do not score
}

// QueryResponse is the expected additional score of a state.
type QueryResponse struct {
	Score           int     `json:"score"`
	Dice            string  `json:"dice"`
	Expected        float32 `json:"expected"`
	BustProbability float32 `json:"bust_probability"`
	Generation      int     `json:"generation"`
}

// DecisionResponse is the strategy's move for a roll.
type DecisionResponse struct {
	Roll       []int   `json:"roll"`
	Keep       []int   `json:"keep"`       // Dice to bank
	KeepScore  int     `json:"keep_score"` // Points the kept dice score
	Continue   bool    `json:"continue"`   // Roll again after banking
	Bust       bool    `json:"bust"`
	Remaining  string  `json:"remaining,omitempty"` // Dice to roll next when continuing
	Terminate  float32 `json:"terminate"`           // Payoff of stopping
	Hold       float32 `json:"hold"`                // Payoff of continuing
	Generation int     `json:"generation"`
}

// IterateResponse acknowledges a started iteration.
type IterateResponse struct {
	From   int `json:"from"`   // Generation being served
	Target int `json:"target"` // Generation served once finished
}

// SimulateResponse summarises simulated turns.
type SimulateResponse struct {
	Turns      int     `json:"turns"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	CI95       float64 `json:"ci95"`
	BustRate   float64 `json:"bust_rate"`
	MeanRolls  float64 `json:"mean_rolls"`
	MaxGain    float64 `json:"max_gain"`
	Expected   float32 `json:"expected"` // Table value of the starting state
	Generation int     `json:"generation"`
}

// ProgressEvent reports a table pass of a running iteration.
type ProgressEvent struct {
	Generation int     `json:"generation"` // Generation being built
	Pass       string  `json:"pass"`
	Done       int     `json:"done"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
}

// IterationResult reports the end of an iteration.
type IterationResult struct {
	Generation int    `json:"generation"`
	Error      string `json:"error,omitempty"`
}
