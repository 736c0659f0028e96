package dfg

// Op identifies a node operation. Opcode properties live in opTab so that
// identity stays a small dense integer usable as a table index.
type Op uint8

const (
	Nop Op = iota

	// constants
	JSConstant
	WeakJSConstant

	// locals
	GetLocal
	SetLocal
	SetArgument
	Phi
	Flush

	// bitwise
	BitAnd
	BitOr
	BitXor
	BitLShift
	BitRShift
	BitURShift

	// conversions
	ValueToInt32
	UInt32ToNumber

	// arithmetic
	ValueAdd
	ArithAdd
	ArithSub
	ArithMul
	ArithDiv
	ArithMod
	ArithAbs
	ArithMin
	ArithMax
	ArithSqrt

	// property access by identifier
	GetById
	GetByIdFlush
	PutById
	PutByIdDirect

	// indexed access
	GetByVal
	PutByVal
	PutByValAlias
	ArrayPush
	ArrayPop

	// structure and storage
	CheckStructure
	PutStructure
	GetPropertyStorage
	GetIndexedPropertyStorage
	GetByOffset
	PutByOffset

	// globals, scopes, resolution
	GetGlobalVar
	PutGlobalVar
	GetScopedVar
	PutScopedVar
	GetScopeChain
	Resolve
	ResolveBase
	ResolveBaseStrictPut
	ResolveGlobal

	// functions and checks
	CheckFunction
	CheckHasInstance
	InstanceOf
	GetCallee

	// comparisons and logic
	LogicalNot
	CompareLess
	CompareLessEq
	CompareGreater
	CompareGreaterEq
	CompareEq
	CompareStrictEq

	// calls
	Call
	Construct
	ConvertThis
	CreateThis

	// allocation
	NewObject
	NewArray
	NewArrayBuffer
	NewRegexp

	// strings
	StringCharAt
	StringCharCodeAt
	StrCat
	ToPrimitive

	// length reads, inserted by fixup
	GetArrayLength
	GetStringLength
	GetByteArrayLength
	GetInt8ArrayLength
	GetInt16ArrayLength
	GetInt32ArrayLength
	GetUint8ArrayLength
	GetUint8ClampedArrayLength
	GetUint16ArrayLength
	GetUint32ArrayLength
	GetFloat32ArrayLength
	GetFloat64ArrayLength

	// control
	Jump
	Branch
	Return
	Throw
	ThrowReferenceError
	Breakpoint
	ForceOSRExit

	// meta
	Phantom
	InlineStart

	LastOp
)

type opFlags uint8

const (
	opHasResult opFlags = 1 << iota
	opMustGenerate
	opHasVarArgs
	opClobbersWorld
	opMightClobber
	opHasArithFlags
)

type opInfo struct {
	name  string
	flags opFlags
}

var opTab = [LastOp]opInfo{
	Nop: {"Nop", 0},

	JSConstant:     {"JSConstant", opHasResult},
	WeakJSConstant: {"WeakJSConstant", opHasResult},

	GetLocal:    {"GetLocal", opHasResult},
	SetLocal:    {"SetLocal", opMustGenerate},
	SetArgument: {"SetArgument", opMustGenerate},
	Phi:         {"Phi", opHasResult},
	Flush:       {"Flush", opMustGenerate},

	BitAnd:     {"BitAnd", opHasResult},
	BitOr:      {"BitOr", opHasResult},
	BitXor:     {"BitXor", opHasResult},
	BitLShift:  {"BitLShift", opHasResult},
	BitRShift:  {"BitRShift", opHasResult},
	BitURShift: {"BitURShift", opHasResult},

	ValueToInt32:   {"ValueToInt32", opHasResult | opHasArithFlags},
	UInt32ToNumber: {"UInt32ToNumber", opHasResult | opHasArithFlags},

	ValueAdd:  {"ValueAdd", opHasResult | opMustGenerate | opMightClobber | opHasArithFlags},
	ArithAdd:  {"ArithAdd", opHasResult | opHasArithFlags},
	ArithSub:  {"ArithSub", opHasResult | opHasArithFlags},
	ArithMul:  {"ArithMul", opHasResult | opHasArithFlags},
	ArithDiv:  {"ArithDiv", opHasResult | opHasArithFlags},
	ArithMod:  {"ArithMod", opHasResult | opHasArithFlags},
	ArithAbs:  {"ArithAbs", opHasResult | opHasArithFlags},
	ArithMin:  {"ArithMin", opHasResult | opHasArithFlags},
	ArithMax:  {"ArithMax", opHasResult | opHasArithFlags},
	ArithSqrt: {"ArithSqrt", opHasResult},

	GetById:       {"GetById", opHasResult | opMustGenerate | opClobbersWorld},
	GetByIdFlush:  {"GetByIdFlush", opHasResult | opMustGenerate | opClobbersWorld},
	PutById:       {"PutById", opMustGenerate | opClobbersWorld},
	PutByIdDirect: {"PutByIdDirect", opMustGenerate | opClobbersWorld},

	GetByVal:      {"GetByVal", opHasResult | opMustGenerate | opMightClobber},
	PutByVal:      {"PutByVal", opMustGenerate | opClobbersWorld},
	PutByValAlias: {"PutByValAlias", opMustGenerate | opClobbersWorld},
	ArrayPush:     {"ArrayPush", opHasResult | opMustGenerate | opClobbersWorld},
	ArrayPop:      {"ArrayPop", opHasResult | opMustGenerate | opClobbersWorld},

	CheckStructure:            {"CheckStructure", opMustGenerate},
	PutStructure:              {"PutStructure", opMustGenerate},
	GetPropertyStorage:        {"GetPropertyStorage", opHasResult},
	GetIndexedPropertyStorage: {"GetIndexedPropertyStorage", opHasResult | opMustGenerate},
	GetByOffset:               {"GetByOffset", opHasResult},
	PutByOffset:               {"PutByOffset", opMustGenerate},

	GetGlobalVar:         {"GetGlobalVar", opHasResult | opMustGenerate},
	PutGlobalVar:         {"PutGlobalVar", opMustGenerate},
	GetScopedVar:         {"GetScopedVar", opHasResult | opMustGenerate},
	PutScopedVar:         {"PutScopedVar", opMustGenerate},
	GetScopeChain:        {"GetScopeChain", opHasResult},
	Resolve:              {"Resolve", opHasResult | opMustGenerate | opClobbersWorld},
	ResolveBase:          {"ResolveBase", opHasResult | opMustGenerate | opClobbersWorld},
	ResolveBaseStrictPut: {"ResolveBaseStrictPut", opHasResult | opMustGenerate | opClobbersWorld},
	ResolveGlobal:        {"ResolveGlobal", opHasResult | opMustGenerate | opClobbersWorld},

	CheckFunction:    {"CheckFunction", opMustGenerate},
	CheckHasInstance: {"CheckHasInstance", opMustGenerate},
	InstanceOf:       {"InstanceOf", opHasResult | opMustGenerate},
	GetCallee:        {"GetCallee", opHasResult},

	LogicalNot:       {"LogicalNot", opHasResult | opMightClobber},
	CompareLess:      {"CompareLess", opHasResult | opMustGenerate | opMightClobber},
	CompareLessEq:    {"CompareLessEq", opHasResult | opMustGenerate | opMightClobber},
	CompareGreater:   {"CompareGreater", opHasResult | opMustGenerate | opMightClobber},
	CompareGreaterEq: {"CompareGreaterEq", opHasResult | opMustGenerate | opMightClobber},
	CompareEq:        {"CompareEq", opHasResult | opMustGenerate | opMightClobber},
	CompareStrictEq:  {"CompareStrictEq", opHasResult | opMustGenerate},

	Call:        {"Call", opHasResult | opMustGenerate | opHasVarArgs | opClobbersWorld},
	Construct:   {"Construct", opHasResult | opMustGenerate | opHasVarArgs | opClobbersWorld},
	ConvertThis: {"ConvertThis", opHasResult | opMustGenerate},
	CreateThis:  {"CreateThis", opHasResult | opMustGenerate | opClobbersWorld},

	NewObject:      {"NewObject", opHasResult},
	NewArray:       {"NewArray", opHasResult | opHasVarArgs},
	NewArrayBuffer: {"NewArrayBuffer", opHasResult},
	NewRegexp:      {"NewRegexp", opHasResult},

	StringCharAt:     {"StringCharAt", opHasResult | opMustGenerate},
	StringCharCodeAt: {"StringCharCodeAt", opHasResult | opMustGenerate},
	StrCat:           {"StrCat", opHasResult | opMustGenerate | opHasVarArgs | opClobbersWorld},
	ToPrimitive:      {"ToPrimitive", opHasResult | opMustGenerate | opClobbersWorld},

	GetArrayLength:             {"GetArrayLength", opHasResult},
	GetStringLength:            {"GetStringLength", opHasResult},
	GetByteArrayLength:         {"GetByteArrayLength", opHasResult},
	GetInt8ArrayLength:         {"GetInt8ArrayLength", opHasResult},
	GetInt16ArrayLength:        {"GetInt16ArrayLength", opHasResult},
	GetInt32ArrayLength:        {"GetInt32ArrayLength", opHasResult},
	GetUint8ArrayLength:        {"GetUint8ArrayLength", opHasResult},
	GetUint8ClampedArrayLength: {"GetUint8ClampedArrayLength", opHasResult},
	GetUint16ArrayLength:       {"GetUint16ArrayLength", opHasResult},
	GetUint32ArrayLength:       {"GetUint32ArrayLength", opHasResult},
	GetFloat32ArrayLength:      {"GetFloat32ArrayLength", opHasResult},
	GetFloat64ArrayLength:      {"GetFloat64ArrayLength", opHasResult},

	Jump:                {"Jump", opMustGenerate},
	Branch:              {"Branch", opMustGenerate},
	Return:              {"Return", opMustGenerate},
	Throw:               {"Throw", opMustGenerate},
	ThrowReferenceError: {"ThrowReferenceError", opMustGenerate},
	Breakpoint:          {"Breakpoint", opMustGenerate | opClobbersWorld},
	ForceOSRExit:        {"ForceOSRExit", opMustGenerate},

	Phantom:     {"Phantom", opMustGenerate},
	InlineStart: {"InlineStart", opMustGenerate},
}

func (op Op) String() string {
	if op >= LastOp || opTab[op].name == "" {
		return "Op(?)"
	}

	return opTab[op].name
}

func (op Op) HasResult() bool     { return opTab[op].flags&opHasResult != 0 }
func (op Op) MustGenerate() bool  { return opTab[op].flags&opMustGenerate != 0 }
func (op Op) HasVarArgs() bool    { return opTab[op].flags&opHasVarArgs != 0 }
func (op Op) ClobbersWorld() bool { return opTab[op].flags&opClobbersWorld != 0 }
func (op Op) MightClobber() bool  { return opTab[op].flags&opMightClobber != 0 }
func (op Op) HasArithFlags() bool { return opTab[op].flags&opHasArithFlags != 0 }
