package external

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/pkg/solver"
)

var (
	strategyOnce sync.Once
	strategy     *solver.Strategy
)

type fixedSource struct{ s *solver.Strategy }

func (f fixedSource) Current() *solver.Strategy { return f.s }

func testServer(t *testing.T) *Server {
	t.Helper()
	strategyOnce.Do(func() {
		strategy = solver.New(dice.Fair(), solver.Options{})
	})
	return NewServer(fixedSource{strategy}, ServerOptions{Host: "127.0.0.1"})
}

func TestParseTurn(t *testing.T) {
	tests := []struct {
		in      string
		want    Turn
		wantErr bool
	}{
		{
			in:   "turn:350:1:5:2:3:4:6",
			want: Turn{Banked: 350, Roll: dice.Sample{1, 5, 2, 3, 4, 6}},
		},
		{
			in:   "turn:0:5:5",
			want: Turn{Banked: 0, Roll: dice.Sample{5, 5}},
		},
		{
			in:   "turn:100:0:1:0:5",
			want: Turn{Banked: 100, Roll: dice.Sample{0, 1, 0, 5}},
		},
		{in: "350:1:5", wantErr: true},
		{in: "turn:350", wantErr: true},
		{in: "turn:-50:1", wantErr: true},
		{in: "turn:abc:1", wantErr: true},
		{in: "turn:0:7", wantErr: true},
		{in: "turn:0:x", wantErr: true},
		{in: "turn:0:0:0", wantErr: true},
		{in: "turn:0:1:1:1:1:1:1:1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTurn(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTurn(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTurn(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestTurnString(t *testing.T) {
	turn := Turn{Banked: 250, Roll: dice.Sample{1, 5, 0, 0, 0, 0}}
	want := "turn:250:1:5:0:0:0:0"
	if got := turn.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	back, err := ParseTurn(turn.String())
	if err != nil {
		t.Fatalf("ParseTurn(String()) error = %v", err)
	}
	if back != turn {
		t.Errorf("ParseTurn(String()) = %+v, want %+v", back, turn)
	}
}

func TestFormatDice(t *testing.T) {
	tests := []struct {
		in   dice.Sample
		want string
	}{
		{dice.Sample{1, 5, 0, 0, 0, 0}, "1 5"},
		{dice.Sample{0, 0, 3, 3, 3, 0}, "3 3 3"},
		{dice.Sample{}, "-"},
	}
	for _, tt := range tests {
		if got := FormatDice(tt.in); got != tt.want {
			t.Errorf("FormatDice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessCommand(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{"version", "version", "farkle external protocol 1.0\n"},
		{"exit", "exit", "Goodbye\n"},
		{"quit upper case", "QUIT", "Goodbye\n"},
		{"generation", "generation", "1\n"},
		{"score straight", "score 1 5 2 3 4 6", "1500 1500 0\n"},
		{"score with leftover", "score 1,2,3,4,6,6", "0 100 0\n"},
		{"score bust", "score 2 2 3 3 4 6", "0 0 1\n"},
		{"score nothing", "score", "Error: no dice rolled\n"},
		{"decide straight", "decide 0 1 5 2 3 4 6", "stop 1 5 2 3 4 6\n"},
		{"decide single one", "decide 300 1 2 3 4 6 6", "stop 1\n"},
		{"decide bust", "decide 0 2 2 3 3 4 6", "bust\n"},
		{"turn line", "turn:300:1:2:3:4:6:6", "stop 1\n"},
		{"decide turn line", "decide turn:0:2:2:3:3:4:6", "bust\n"},
		{"decide missing roll", "decide 300", "Error: decide requires banked score and roll\n"},
		{"decide bad score", "decide x 1 5", "Error: invalid banked score \"x\"\n"},
		{"decide empty roll", "decide 0 _ _", "Error: no dice rolled\n"},
		{"query missing score", "query", "Error: query requires banked score and optional dice mask\n"},
		{"query bad mask", "query 0 12", "Error: mask \"12\": invalid character '2'\n"},
		{"set missing value", "set verbose", "Error: set requires option and value\n"},
		{"set unknown option", "set color on", "Error: unknown option 'color'\n"},
		{"unknown", "move 8/5", "Error: unknown command 'move'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.processCommand(&session{}, tt.cmd)
			if got != tt.want {
				t.Errorf("processCommand(%q) = %q, want %q", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestProcessQuery(t *testing.T) {
	s := testServer(t)

	got := s.processCommand(&session{}, "query 0 111111")
	fields := strings.Fields(got)
	if len(fields) != 2 {
		t.Fatalf("query response = %q, want two numbers", got)
	}
	expected, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || expected <= 0 {
		t.Errorf("expected score = %q, want a positive number", fields[0])
	}
	bust, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		t.Fatalf("bust probability %q: %v", fields[1], err)
	}
	// Six fair dice bust only on faces from {2,3,4,6} with no face more than
	// twice: 360 + 1080 of 6^6 rolls.
	if want := 1440.0 / 46656.0; bust < want-1e-5 || bust > want+1e-5 {
		t.Errorf("bust probability = %v, want %v", bust, want)
	}

	if all := s.processCommand(&session{}, "query 0"); all != got {
		t.Errorf("query without mask = %q, want %q", all, got)
	}
}

func TestSessionSettings(t *testing.T) {
	s := testServer(t)
	sess := &session{}

	if got := s.processCommand(sess, "set verbose on"); got != "verbose set to true\n" {
		t.Errorf("set verbose = %q", got)
	}
	if !sess.verbose {
		t.Fatal("verbose not enabled")
	}

	got := s.processCommand(sess, "decide 300 1 2 3 4 6 6")
	if !strings.HasPrefix(got, "stop 1 ; stop 100.00 continue ") {
		t.Errorf("verbose decide = %q", got)
	}
	if got := s.processCommand(sess, "decide 0 2 2 3 3 4 6"); got != "bust\n" {
		t.Errorf("verbose bust = %q, want no payoffs", got)
	}

	if got := s.processCommand(sess, "set prompt 0"); got != "prompt set to false\n" {
		t.Errorf("set prompt = %q", got)
	}
	if sess.prompt {
		t.Error("prompt still enabled")
	}
}

func TestServerTCP(t *testing.T) {
	s := testServer(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil")
	}

	conn, err := net.DialTimeout("tcp", s.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reader := bufio.NewReader(conn)
	exchange := func(cmd string) string {
		t.Helper()
		if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
			t.Fatalf("Write(%q) error = %v", cmd, err)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading response to %q: %v", cmd, err)
		}
		return line
	}

	if got := exchange("version"); got != "farkle external protocol 1.0\n" {
		t.Errorf("version = %q", got)
	}
	if got := exchange("turn:0:1:5:2:3:4:6"); got != "stop 1 5 2 3 4 6\n" {
		t.Errorf("turn = %q", got)
	}
	if got := exchange("exit"); got != "Goodbye\n" {
		t.Errorf("exit = %q", got)
	}
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("connection still open after exit")
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.Addr() != nil {
		t.Error("Addr() after Stop() != nil")
	}
}

func TestServerPrompt(t *testing.T) {
	s := testServer(t)
	s.options.PromptEnabled = true
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", s.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	prompt := make([]byte, 2)
	if _, err := io.ReadFull(conn, prompt); err != nil || string(prompt) != "> " {
		t.Fatalf("prompt = %q, %v", prompt, err)
	}
	conn.Write([]byte("score 5\n"))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString error = %v", err)
	}
	if line != "50 50 0\n" {
		t.Errorf("score = %q, want %q", line, "50 50 0\n")
	}
}
