// Package external implements a line-based TCP protocol for bots and game
// front ends that play Farkle with a computed strategy.
//
// Protocol overview:
// - Server listens on a TCP port
// - Client connects and sends one command per line
// - Commands include: decide, query, score, set, version, help, exit
// - Turn states may be sent in the turn line format (see Turn)
// - Each command gets exactly one response line
package external

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/scoring"
	"github.com/yourusername/farklesolver/pkg/solver"
)

// StrategySource supplies the strategy to play with. *solver.Engine
// implements it.
type StrategySource interface {
	Current() *solver.Strategy
}

// Server implements the protocol server.
type Server struct {
	source   StrategySource
	listener net.Listener
	mu       sync.Mutex
	running  bool
	options  ServerOptions
}

// ServerOptions configures the protocol server.
type ServerOptions struct {
	Host          string // Host to bind to
	Port          int    // TCP port to listen on (0 = any free port)
	Verbose       bool   // Append payoffs to decisions
	PromptEnabled bool   // Send prompts after responses
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Host:          "localhost",
		Port:          4321,
		PromptEnabled: true,
	}
}

// session holds the per-connection settings changed with "set".
type session struct {
	verbose bool
	prompt  bool
}

// NewServer creates a new protocol server.
func NewServer(source StrategySource, opts ServerOptions) *Server {
	return &Server{
		source:  source,
		options: opts,
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.running = true
	log.Info().Str("addr", listener.Addr().String()).Msg("protocol-listening")

	go s.acceptLoop(listener)

	return nil
}

// Addr returns the address the server listens on, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server. Open connections finish their current command.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.listener.Close()
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("protocol-accept-failed")
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	sess := &session{verbose: s.options.Verbose, prompt: s.options.PromptEnabled}

	if sess.prompt {
		conn.Write([]byte("> "))
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("protocol-read-failed")
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		response := s.processCommand(sess, line)
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}

		cmd := strings.ToLower(strings.Fields(line)[0])
		if cmd == "exit" || cmd == "quit" {
			return
		}
		if sess.prompt {
			conn.Write([]byte("> "))
		}
	}
}

// processCommand processes a single command and returns the response.
func (s *Server) processCommand(sess *session, cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return "Error: empty command\n"
	}

	command := strings.ToLower(parts[0])

	switch command {
	case "version":
		return "farkle external protocol 1.0\n"

	case "help":
		return helpResponse()

	case "exit", "quit":
		return "Goodbye\n"

	case "set":
		return sess.handleSet(parts[1:])

	case "generation", "gen":
		return fmt.Sprintf("%d\n", s.source.Current().N())

	case "score":
		return handleScore(strings.Join(parts[1:], " "))

	case "query":
		return s.handleQuery(parts[1:])

	case "decide":
		return s.handleDecide(sess, parts[1:])

	default:
		if strings.HasPrefix(command, turnPrefix) {
			return s.handleDecide(sess, parts)
		}
		return fmt.Sprintf("Error: unknown command '%s'\n", command)
	}
}

func helpResponse() string {
	return `Available commands:
  version                 - Show version information
  help                    - Show this help
  generation              - Show the strategy generation being played
  set <opt> <value>       - Set option (verbose, prompt)
  score <roll>            - Score a roll: <score> <best score> <bust 0|1>
  query <banked> [mask]   - Expected additional score and bust chance
  decide <banked> <roll>  - What to keep and whether to roll again
  turn:<banked>:<d1>:...  - Same as decide, in turn line format
  exit                    - Close connection
`
}

func (sess *session) handleSet(args []string) string {
	if len(args) < 2 {
		return "Error: set requires option and value\n"
	}

	option := strings.ToLower(args[0])
	value := strings.ToLower(args[1])
	on := value == "on" || value == "true" || value == "1"

	switch option {
	case "verbose":
		sess.verbose = on
		return fmt.Sprintf("verbose set to %v\n", on)

	case "prompt":
		sess.prompt = on
		return fmt.Sprintf("prompt set to %v\n", on)

	default:
		return fmt.Sprintf("Error: unknown option '%s'\n", option)
	}
}

// handleScore answers "<score> <best score> <bust>" for a roll.
func handleScore(arg string) string {
	roll, err := dice.ParseSample(arg)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	if roll.Len() == 0 {
		return "Error: no dice rolled\n"
	}
	h := scoring.Count(roll)
	bust := 0
	if !scoring.NotBusted(h) {
		bust = 1
	}
	return fmt.Sprintf("%d %d %d\n", scoring.Score(h), scoring.BestScore(h), bust)
}

func parseBanked(s string) (scoring.Points, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid banked score %q", s)
	}
	return scoring.Clamp(v), nil
}

// handleQuery answers "<expected> <bust probability>" for a state.
func (s *Server) handleQuery(args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Error: query requires banked score and optional dice mask\n"
	}
	banked, err := parseBanked(args[0])
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	mask := dice.AllDice
	if len(args) == 2 {
		if mask, err = dice.ParseMask(args[1]); err != nil {
			return fmt.Sprintf("Error: %v\n", err)
		}
	}
	st := s.source.Current()
	return fmt.Sprintf("%.6f %.6f\n", st.QueryScore(banked, mask), st.BustProbability(mask))
}

// handleDecide answers one of:
//
//	bust
//	stop <kept dice>
//	roll <kept dice>
//
// followed, in verbose mode, by the stop and continue payoffs.
func (s *Server) handleDecide(sess *session, args []string) string {
	var (
		turn Turn
		err  error
	)
	switch {
	case len(args) == 1 && strings.HasPrefix(strings.ToLower(args[0]), turnPrefix):
		turn, err = ParseTurn(strings.ToLower(args[0]))
	case len(args) >= 2:
		turn.Banked, err = parseBanked(args[0])
		if err == nil {
			turn.Roll, err = dice.ParseSample(strings.Join(args[1:], " "))
		}
		if err == nil && turn.Roll.Len() == 0 {
			err = errors.New("no dice rolled")
		}
	default:
		return "Error: decide requires banked score and roll\n"
	}
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}

	d := s.source.Current().QueryDecision(turn.Banked, turn.Roll)
	var resp string
	switch {
	case d.Bust:
		resp = "bust"
	case d.Continue:
		resp = "roll " + FormatDice(d.Keep)
	default:
		resp = "stop " + FormatDice(d.Keep)
	}
	if sess.verbose && !d.Bust {
		resp += fmt.Sprintf(" ; stop %.2f continue %.2f", d.Terminate, d.Hold)
	}
	return resp + "\n"
}
