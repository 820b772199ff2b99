package sim

import "twowire/x/conv"

// OpKind names a recorded peripheral operation.
type OpKind uint8

const (
	OpStart OpKind = iota
	OpNext
	OpStop
	OpReceiveStart
	OpReceiveStop
	OpPut
)

// Op is one recorded operation. Byte is meaningful for start, next and put.
type Op struct {
	Kind OpKind
	Byte byte
}

// Start, Next and Stop build expected ops for comparisons in tests.
func Start(b byte) Op { return Op{Kind: OpStart, Byte: b} }
func Next(b byte) Op  { return Op{Kind: OpNext, Byte: b} }
func Stop() Op        { return Op{Kind: OpStop} }

func (o Op) String() string {
	var buf [16]byte
	out := buf[:0]
	switch o.Kind {
	case OpStart:
		out = append(out, "start("...)
		out = conv.AppendByteHex(out, o.Byte)
	case OpNext:
		out = append(out, "next("...)
		out = conv.AppendByteHex(out, o.Byte)
	case OpPut:
		out = append(out, "put("...)
		out = conv.AppendByteHex(out, o.Byte)
	case OpStop:
		out = append(out, "stop("...)
	case OpReceiveStart:
		out = append(out, "rstart("...)
	case OpReceiveStop:
		out = append(out, "rstop("...)
	default:
		out = append(out, "op("...)
	}
	return string(append(out, ')'))
}

// Filter keeps ops whose kind is in kinds.
func Filter(ops []Op, kinds ...OpKind) []Op {
	var out []Op
	for _, o := range ops {
		for _, k := range kinds {
			if o.Kind == k {
				out = append(out, o)
				break
			}
		}
	}
	return out
}
