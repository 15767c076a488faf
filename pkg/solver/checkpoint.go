package solver

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/perfhash"
)

// Checkpoint layout, all numbers little-endian:
//
//	header   40 bytes of text: "farkle-strat v1 n=<gen> hold=<0|1>", space padded
//	dice     6*6 float64 face probabilities
//	bust     64 float32
//	scores   120*64 float32
//	hold     120*7^6 records of float32 gain + 6 face bytes, only when hold=1
//	checksum xxhash64 of everything above
const (
	checkpointMagic   = "farkle-strat v1"
	headerSize        = 40
	holdRecordSize    = 4 + dice.NumDice
	encodeBufferCells = 4096
)

// ErrBadCheckpoint is returned when a checkpoint is malformed or corrupt.
var ErrBadCheckpoint = errors.New("bad checkpoint")

// WriteCheckpoint serialises s to w.
func WriteCheckpoint(w io.Writer, s *Strategy) error {
	bw := bufio.NewWriter(w)
	digest := xxhash.New()
	out := io.MultiWriter(bw, digest)

	hasHold := 0
	if s.hold != nil {
		hasHold = 1
	}
	header := fmt.Sprintf("%s n=%d hold=%d", checkpointMagic, s.n, hasHold)
	if len(header) > headerSize {
		return fmt.Errorf("checkpoint header too long: %q", header)
	}
	header += strings.Repeat(" ", headerSize-len(header))
	if _, err := io.WriteString(out, header); err != nil {
		return fmt.Errorf("failed to write checkpoint header: %w", err)
	}

	probs := make([]float64, 0, dice.NumDice*dice.NumSides)
	for _, d := range s.dice {
		p := d.Probabilities()
		probs = append(probs, p[:]...)
	}
	if err := binary.Write(out, binary.LittleEndian, probs); err != nil {
		return fmt.Errorf("failed to write dice: %w", err)
	}
	if err := writeFloat32s(out, s.bust.Cells()); err != nil {
		return fmt.Errorf("failed to write bust table: %w", err)
	}
	if err := writeFloat32s(out, s.scores.Cells()); err != nil {
		return fmt.Errorf("failed to write score table: %w", err)
	}
	if s.hold != nil {
		if err := writeHolds(out, s.hold.Cells()); err != nil {
			return fmt.Errorf("failed to write hold table: %w", err)
		}
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], digest.Sum64())
	if _, err := bw.Write(sum[:]); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	return bw.Flush()
}

// ReadCheckpoint restores a Strategy written by WriteCheckpoint.
func ReadCheckpoint(r io.Reader) (*Strategy, error) {
	br := bufio.NewReader(r)
	digest := xxhash.New()
	in := io.TeeReader(br, digest)

	var header [headerSize]byte
	if _, err := io.ReadFull(in, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadCheckpoint, err)
	}
	n, hasHold, err := parseHeader(string(header[:]))
	if err != nil {
		return nil, err
	}

	s := &Strategy{n: n}
	probs := make([]float64, dice.NumDice*dice.NumSides)
	if err := binary.Read(in, binary.LittleEndian, probs); err != nil {
		return nil, fmt.Errorf("%w: dice: %v", ErrBadCheckpoint, err)
	}
	for i := range s.dice {
		var p [dice.NumSides]float64
		copy(p[:], probs[i*dice.NumSides:])
		s.dice[i] = dice.New(p)
	}

	bust := make([]float32, numMasks)
	if err := readFloat32s(in, bust); err != nil {
		return nil, fmt.Errorf("%w: bust table: %v", ErrBadCheckpoint, err)
	}
	if s.bust, err = perfhash.FromCells[dice.Mask, float32, dice.MaskCodec](bust); err != nil {
		return nil, err
	}

	scores := make([]float32, scoreCells)
	if err := readFloat32s(in, scores); err != nil {
		return nil, fmt.Errorf("%w: score table: %v", ErrBadCheckpoint, err)
	}
	if s.scores, err = perfhash.FromCells[ScoreKey, float32, ScoreCodec](scores); err != nil {
		return nil, err
	}

	if hasHold {
		holds := make([]Hold, holdCells)
		if err := readHolds(in, holds); err != nil {
			return nil, fmt.Errorf("%w: hold table: %v", ErrBadCheckpoint, err)
		}
		if s.hold, err = perfhash.FromCells[HoldKey, Hold, HoldCodec](holds); err != nil {
			return nil, err
		}
	}

	want := digest.Sum64()
	var sum [8]byte
	if _, err := io.ReadFull(br, sum[:]); err != nil {
		return nil, fmt.Errorf("%w: checksum: %v", ErrBadCheckpoint, err)
	}
	if got := binary.LittleEndian.Uint64(sum[:]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadCheckpoint)
	}
	return s, nil
}

func parseHeader(header string) (n int, hasHold bool, err error) {
	if !strings.HasPrefix(header, checkpointMagic+" ") {
		return 0, false, fmt.Errorf("%w: not a farkle strategy", ErrBadCheckpoint)
	}
	var hold int
	fields := strings.TrimSpace(header[len(checkpointMagic):])
	if _, err := fmt.Sscanf(fields, "n=%d hold=%d", &n, &hold); err != nil {
		return 0, false, fmt.Errorf("%w: header %q: %v", ErrBadCheckpoint, fields, err)
	}
	if n < 1 {
		return 0, false, fmt.Errorf("%w: generation %d", ErrBadCheckpoint, n)
	}
	// Only generation 1 lacks a hold table.
	if (hold == 1) != (n > 1) {
		return 0, false, fmt.Errorf("%w: generation %d with hold=%d", ErrBadCheckpoint, n, hold)
	}
	return n, hold == 1, nil
}

func writeFloat32s(w io.Writer, vals []float32) error {
	buf := make([]byte, 4*min(len(vals), encodeBufferCells))
	for len(vals) > 0 {
		n := min(len(vals), encodeBufferCells)
		for i, v := range vals[:n] {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		if _, err := w.Write(buf[:4*n]); err != nil {
			return err
		}
		vals = vals[n:]
	}
	return nil
}

func readFloat32s(r io.Reader, vals []float32) error {
	buf := make([]byte, 4*min(len(vals), encodeBufferCells))
	for len(vals) > 0 {
		n := min(len(vals), encodeBufferCells)
		if _, err := io.ReadFull(r, buf[:4*n]); err != nil {
			return err
		}
		for i := range vals[:n] {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		vals = vals[n:]
	}
	return nil
}

func writeHolds(w io.Writer, holds []Hold) error {
	buf := make([]byte, holdRecordSize*encodeBufferCells)
	for len(holds) > 0 {
		n := min(len(holds), encodeBufferCells)
		for i, h := range holds[:n] {
			rec := buf[holdRecordSize*i:]
			binary.LittleEndian.PutUint32(rec, math.Float32bits(h.Gain))
			for j, side := range h.Selection {
				rec[4+j] = byte(side)
			}
		}
		if _, err := w.Write(buf[:holdRecordSize*n]); err != nil {
			return err
		}
		holds = holds[n:]
	}
	return nil
}

func readHolds(r io.Reader, holds []Hold) error {
	buf := make([]byte, holdRecordSize*encodeBufferCells)
	for len(holds) > 0 {
		n := min(len(holds), encodeBufferCells)
		if _, err := io.ReadFull(r, buf[:holdRecordSize*n]); err != nil {
			return err
		}
		for i := range holds[:n] {
			rec := buf[holdRecordSize*i:]
			holds[i].Gain = math.Float32frombits(binary.LittleEndian.Uint32(rec))
			for j := range holds[i].Selection {
				side := dice.Side(rec[4+j])
				if side > dice.Six {
					return fmt.Errorf("invalid face %d", side)
				}
				holds[i].Selection[j] = side
			}
		}
		holds = holds[n:]
	}
	return nil
}

// SaveFile writes s to path. The checkpoint is written to a temporary file in
// the same directory and renamed into place.
func SaveFile(path string, s *Strategy) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".farkle-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := WriteCheckpoint(f, s); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to install checkpoint: %w", err)
	}
	return nil
}

// LoadFile reads a checkpoint from path.
func LoadFile(path string) (*Strategy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer f.Close()

	s, err := ReadCheckpoint(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
