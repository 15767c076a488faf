// Package main provides C-compatible functions for building a shared library.
// Build with: go build -buildmode=c-shared -o libfarkle.so ./pkg/capi
//
// Results are returned as JSON strings owned by the caller, to be released
// with farkle_free_string. Rolls are comma separated face values.
package main

/*
#include <stdlib.h>
#include <stdint.h>
*/
import "C"
import (
	"encoding/json"
	"errors"
	"sync"
	"unsafe"

	"github.com/yourusername/farklesolver/internal/config"
	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/pkg/api"
	"github.com/yourusername/farklesolver/pkg/solver"
)

var (
	strategy      *solver.Strategy
	strategyMutex sync.RWMutex
	lastError     string
	errorMutex    sync.Mutex
)

var errNotInitialized = errors.New("strategy not initialized")

// setError stores an error message for later retrieval.
func setError(err error) {
	errorMutex.Lock()
	defer errorMutex.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func loaded() *solver.Strategy {
	strategyMutex.RLock()
	defer strategyMutex.RUnlock()
	return strategy
}

// respond stores payload, or the error, as JSON in *resultJSON.
func respond(payload interface{}, err error, resultJSON **C.char) C.int {
	if err != nil {
		setError(err)
		msg, _ := json.Marshal(api.ErrorResponse{Error: err.Error()})
		*resultJSON = C.CString(string(msg))
		return -1
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return respond(nil, err, resultJSON)
	}
	*resultJSON = C.CString(string(out))
	setError(nil)
	return 0
}

func parseRoll(roll *C.char) ([]int, error) {
	s, err := dice.ParseSample(C.GoString(roll))
	if err != nil {
		return nil, err
	}
	return s.Ints(), nil
}

//export farkle_version
func farkle_version() *C.char {
	return C.CString("0.1.0")
}

//export farkle_last_error
func farkle_last_error() *C.char {
	errorMutex.Lock()
	defer errorMutex.Unlock()
	if lastError == "" {
		return nil
	}
	return C.CString(lastError)
}

// farkle_init loads the strategy in checkpointFile. Without a checkpoint it
// builds Optimal_1 for the dice in diceFile, or for fair dice when diceFile
// is NULL too. It returns the generation loaded, or -1 on error.
//
//export farkle_init
func farkle_init(checkpointFile, diceFile *C.char) C.int {
	var (
		s   *solver.Strategy
		err error
	)
	switch {
	case checkpointFile != nil:
		s, err = solver.LoadFile(C.GoString(checkpointFile))
	case diceFile != nil:
		var dd [dice.NumDice]dice.Die
		if dd, err = config.LoadDiceFile(C.GoString(diceFile)); err == nil {
			s = solver.New(dd, solver.Options{})
		}
	default:
		s = solver.New(dice.Fair(), solver.Options{})
	}
	if err != nil {
		setError(err)
		return -1
	}

	strategyMutex.Lock()
	strategy = s
	strategyMutex.Unlock()
	setError(nil)
	return C.int(s.N())
}

//export farkle_shutdown
func farkle_shutdown() {
	strategyMutex.Lock()
	defer strategyMutex.Unlock()
	strategy = nil
}

//export farkle_score
func farkle_score(roll *C.char, resultJSON **C.char) C.int {
	faces, err := parseRoll(roll)
	if err != nil {
		return respond(nil, err, resultJSON)
	}
	resp, err := api.ScoreRoll(api.ScoreRequest{Roll: faces})
	return respond(resp, err, resultJSON)
}

//export farkle_query
func farkle_query(score C.int, mask *C.char, resultJSON **C.char) C.int {
	s := loaded()
	if s == nil {
		return respond(nil, errNotInitialized, resultJSON)
	}
	req := api.QueryRequest{Score: int(score)}
	if mask != nil {
		req.Dice = C.GoString(mask)
	}
	resp, err := api.QueryStrategy(s, req)
	return respond(resp, err, resultJSON)
}

//export farkle_decide
func farkle_decide(score C.int, roll *C.char, resultJSON **C.char) C.int {
	s := loaded()
	if s == nil {
		return respond(nil, errNotInitialized, resultJSON)
	}
	faces, err := parseRoll(roll)
	if err != nil {
		return respond(nil, err, resultJSON)
	}
	resp, err := api.DecideRoll(s, api.DecisionRequest{Score: int(score), Roll: faces})
	return respond(resp, err, resultJSON)
}

//export farkle_free_string
func farkle_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func main() {}
