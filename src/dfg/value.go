package dfg

import (
	"math"

	"github.com/zihong/JavaScriptCore/src/dfg/prediction"
)

type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBoolean
	KindInt32
	KindDouble
	KindString

	KindFinalObject
	KindArray
	KindFunction
	KindRegExp
	KindObjectOther
	KindCellOther
)

// Value is the concrete runtime value behind a constant register.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
}

func Int32Value(v int32) Value   { return Value{Kind: KindInt32, Num: float64(v)} }
func DoubleValue(v float64) Value { return Value{Kind: KindDouble, Num: v} }
func BooleanValue(v bool) Value  { return Value{Kind: KindBoolean, Bool: v} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func (v Value) IsNumber() bool {
	return v.Kind == KindInt32 || v.Kind == KindDouble
}

func (v Value) IsInt32() bool {
	if v.Kind == KindInt32 {
		return true
	}

	return v.Kind == KindDouble && v.Num == math.Trunc(v.Num) &&
		v.Num >= math.MinInt32 && v.Num <= math.MaxInt32 &&
		!(v.Num == 0 && math.Signbit(v.Num))
}

// PredictionFromValue classifies a runtime value into the lattice.
func PredictionFromValue(v Value) prediction.Type {
	switch v.Kind {
	case KindInt32:
		return prediction.Int32
	case KindDouble:
		return prediction.Double
	case KindBoolean:
		return prediction.Boolean
	case KindString:
		return prediction.String
	case KindFinalObject:
		return prediction.FinalObject
	case KindArray:
		return prediction.Array
	case KindFunction:
		return prediction.Function
	case KindRegExp, KindObjectOther:
		return prediction.ObjectOther
	case KindCellOther:
		return prediction.CellOther
	default:
		// undefined and null
		return prediction.Other
	}
}
