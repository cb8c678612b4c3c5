package cpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	g "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/spacemaninhust/TinyInfiniTensor/core/graph"
	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/logger"
)

// flushEpsilon is the magnitude below which Execute flushes a float32
// result to exactly zero, avoiding denormal noise accumulating across
// chained MatMul/Transpose passes over the same arena.
const flushEpsilon = 1e-30

// Execute runs every MatMul and Transpose operator of g in topological
// order against the raw bytes its Tensors were bound to by DataMalloc.
// Every operator's inputs and output must already carry float32 data;
// it is the caller's responsibility to have seeded the Graph's input
// tensors before calling Execute.
func Execute(gr *graph.Graph) error {
	for _, op := range gr.Operators() {
		switch o := op.(type) {
		case *graph.MatMul:
			if err := execMatMul(o); err != nil {
				return fmt.Errorf("cpu: executing %s: %w", o.String(), err)
			}
		case *graph.Transpose:
			if err := execTranspose(o); err != nil {
				return fmt.Errorf("cpu: executing %s: %w", o.String(), err)
			}
		default:
			return fmt.Errorf("cpu: no kernel for operator %s", op.String())
		}
	}
	return nil
}

func readFloat32(t *graph.Tensor) ([]float32, error) {
	if t.DataType() != types.DTFloat32 {
		return nil, fmt.Errorf("tensor %d: only float32 kernels are implemented, got %s", t.Fuid(), t.DataType())
	}
	ptr, ok := t.Ptr().(*Pointer)
	if !ok {
		return nil, fmt.Errorf("tensor %d: not bound to a cpu.Pointer", t.Fuid())
	}
	raw := ptr.Bytes(t.Bytes())
	out := make([]float32, t.Shape().Size())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

func writeFloat32(t *graph.Tensor, data []float32) error {
	ptr, ok := t.Ptr().(*Pointer)
	if !ok {
		return fmt.Errorf("tensor %d: not bound to a cpu.Pointer", t.Fuid())
	}
	raw := ptr.Bytes(t.Bytes())
	for i, v := range data {
		if math32.Abs(v) < flushEpsilon {
			v = 0
		}
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return nil
}

// execMatMul builds a two-node gorgonia expression graph for a single
// matmul, compiles it with a tape machine, and writes the result back.
func execMatMul(m *graph.MatMul) error {
	inputs := m.Inputs()
	a, err := readFloat32(inputs[0])
	if err != nil {
		return err
	}
	b, err := readFloat32(inputs[1])
	if err != nil {
		return err
	}

	shapes, ok := m.InferShape()
	if !ok {
		return fmt.Errorf("shape inference failed during execution")
	}
	aShape, bShape := inputs[0].Shape(), inputs[1].Shape()
	if m.TransA {
		aShape = aShape.SwapLastTwo()
	}
	if m.TransB {
		bShape = bShape.SwapLastTwo()
	}
	if len(aShape) != 2 || len(bShape) != 2 {
		return fmt.Errorf("cpu: execMatMul only supports 2-D operands, got %v and %v", aShape, bShape)
	}

	graphExpr := g.NewGraph()
	aNode := g.NewTensor(graphExpr, tensor.Float32, 2, g.WithShape(aShape[0], aShape[1]), g.WithName("a"),
		g.WithValue(tensor.New(tensor.WithShape(aShape[0], aShape[1]), tensor.Of(tensor.Float32), tensor.WithBacking(cloneFloat32(a)))))
	bNode := g.NewTensor(graphExpr, tensor.Float32, 2, g.WithShape(bShape[0], bShape[1]), g.WithName("b"),
		g.WithValue(tensor.New(tensor.WithShape(bShape[0], bShape[1]), tensor.Of(tensor.Float32), tensor.WithBacking(cloneFloat32(b)))))

	product, err := g.Mul(aNode, bNode)
	if err != nil {
		return fmt.Errorf("building matmul expression: %w", err)
	}

	vm := g.NewTapeMachine(graphExpr)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return fmt.Errorf("running matmul tape: %w", err)
	}

	dense, ok := product.Value().(*tensor.Dense)
	if !ok {
		return fmt.Errorf("matmul result is not a dense tensor")
	}
	out := m.Outputs()[0]
	logger.Log.Debug().Str("op", ids.Short(int64(m.Guid()))).Ints("shape", []int(shapes[0])).Msg("cpu: matmul executed")
	return writeFloat32(out, dense.Data().([]float32))
}

// execTranspose builds a one-node gorgonia expression graph applying
// Perm to the input, compiles it with a tape machine, and writes the
// permuted result back.
func execTranspose(t *graph.Transpose) error {
	input := t.Inputs()[0]
	data, err := readFloat32(input)
	if err != nil {
		return err
	}
	shape := input.Shape()

	graphExpr := g.NewGraph()
	inNode := g.NewTensor(graphExpr, tensor.Float32, len(shape), g.WithShape([]int(shape)...), g.WithName("in"),
		g.WithValue(tensor.New(tensor.WithShape([]int(shape)...), tensor.Of(tensor.Float32), tensor.WithBacking(cloneFloat32(data)))))

	permuted, err := g.Transpose(inNode, t.Perm...)
	if err != nil {
		return fmt.Errorf("building transpose expression: %w", err)
	}

	vm := g.NewTapeMachine(graphExpr)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return fmt.Errorf("running transpose tape: %w", err)
	}

	dense, ok := permuted.Value().(*tensor.Dense)
	if !ok {
		return fmt.Errorf("transpose result is not a dense tensor")
	}
	out := t.Outputs()[0]
	logger.Log.Debug().Str("op", ids.Short(int64(t.Guid()))).Ints("perm", t.Perm).Msg("cpu: transpose executed")
	return writeFloat32(out, dense.Data().([]float32))
}

func cloneFloat32(in []float32) []float32 {
	out := make([]float32, len(in))
	copy(out, in)
	return out
}
