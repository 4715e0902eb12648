package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/emotune-cli/internal/device"
)

// ErrShapeMismatch is returned when stored parameters do not fit the config.
var ErrShapeMismatch = errors.New("parameter shape mismatch")

var weightsMagic = [8]byte{'E', 'M', 'O', 'T', 'U', 'N', 'E', '1'}

// Save writes config.json and model.bin into dir.
func (c *Classifier) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := WriteConfig(dir, c.Config); err != nil {
		return err
	}
	b, err := EncodeParams(c.Params)
	if err != nil {
		return err
	}
	logf(c.Config.BaseModel, "saved %s (%d bytes) to %s", WeightsFile, len(b), dir)
	return os.WriteFile(filepath.Join(dir, WeightsFile), b, 0o644)
}

// EncodeParams serializes parameters: magic, then length-prefixed gonum
// binary encodings of W and B.
func EncodeParams(p *Params) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(weightsMagic[:])
	for _, m := range []interface{ MarshalBinary() ([]byte, error) }{p.W, p.B} {
		b, err := m.MarshalBinary()
		if err != nil {
			return nil, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(b)))
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// DecodeParams is the inverse of EncodeParams. Parameters are placed on the CPU.
func DecodeParams(raw []byte) (*Params, error) {
	r := bytes.NewReader(raw)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != weightsMagic {
		return nil, fmt.Errorf("not a %s file", WeightsFile)
	}
	next := func() ([]byte, error) {
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		if n > uint64(r.Len()) {
			return nil, io.ErrUnexpectedEOF
		}
		b := make([]byte, n)
		_, err := io.ReadFull(r, b)
		return b, err
	}

	p := &Params{W: &mat.Dense{}, B: &mat.VecDense{}, Device: device.CPU}
	wb, err := next()
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	if err := p.W.UnmarshalBinary(wb); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	bb, err := next()
	if err != nil {
		return nil, fmt.Errorf("read bias: %w", err)
	}
	if err := p.B.UnmarshalBinary(bb); err != nil {
		return nil, fmt.Errorf("decode bias: %w", err)
	}
	return p, nil
}

// Load reads a classifier saved by Save and validates parameter shapes
// against its config.
func Load(dir string) (*Classifier, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", dir, err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", dir, err)
	}
	p, err := DecodeParams(raw)
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", dir, err)
	}
	rows, cols := p.Shape()
	if rows != cfg.NumLabels || cols != cfg.VocabSize || p.B.Len() != cfg.NumLabels {
		return nil, fmt.Errorf("load model from %s: weights %dx%d bias %d, config wants %dx%d: %w",
			dir, rows, cols, p.B.Len(), cfg.NumLabels, cfg.VocabSize, ErrShapeMismatch)
	}
	logf(cfg.BaseModel, "loaded %dx%d head from %s", rows, cols, dir)
	return &Classifier{Config: cfg, Params: p}, nil
}
