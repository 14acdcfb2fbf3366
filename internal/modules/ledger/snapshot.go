package ledger

import (
	"fmt"
	"sync"

	"github.com/aristath/synthbench/internal/quantum"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is bumped whenever the encoded layout changes.
const snapshotVersion = 1

type snapshot struct {
	Version   int          `msgpack:"v"`
	NumQudits int          `msgpack:"n"`
	Ops       []snapshotOp `msgpack:"ops"`
}

type snapshotOp struct {
	Gate   string    `msgpack:"g"`
	Qudits []int     `msgpack:"q"`
	Params []float64 `msgpack:"p,omitempty"`
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// EncodeSnapshot serializes a circuit as zstd-compressed msgpack. Circuits
// holding opaque unitary operations cannot be encoded.
func EncodeSnapshot(c *quantum.Circuit) ([]byte, error) {
	ops := c.Operations()
	s := snapshot{Version: snapshotVersion, NumQudits: c.NumQudits(), Ops: make([]snapshotOp, len(ops))}
	for i, op := range ops {
		if op.Unitary != nil {
			return nil, fmt.Errorf("operation %d is an opaque unitary", i)
		}
		s.Ops[i] = snapshotOp{Gate: op.Gate.Name, Qudits: op.Qudits, Params: op.Params}
	}

	raw, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	enc, err := getZstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(raw, nil), nil
}

// DecodeSnapshot rebuilds a circuit encoded by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*quantum.Circuit, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer zstdDecoderPool.Put(dec)

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var s snapshot
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	if err := quantum.CheckWidth(s.NumQudits); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	c := quantum.NewCircuit(s.NumQudits)
	for i, op := range s.Ops {
		g, ok := quantum.LookupGate(op.Gate)
		if !ok {
			return nil, fmt.Errorf("operation %d: unknown gate %q", i, op.Gate)
		}
		if err := c.Append(g, op.Qudits, op.Params...); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return c, nil
}
