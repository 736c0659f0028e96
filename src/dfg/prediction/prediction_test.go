package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	assert.True(t, IsInt32(Int32))
	assert.False(t, IsInt32(Int32|Double))
	assert.False(t, IsInt32(None))

	assert.True(t, IsNumber(Int32))
	assert.True(t, IsNumber(Double))
	assert.True(t, IsNumber(Int32|Double))
	assert.False(t, IsNumber(Int32|String))
	assert.False(t, IsNumber(None))

	assert.True(t, IsBoolean(Boolean))
	assert.True(t, IsString(String))
	assert.True(t, IsArray(Array))
	assert.False(t, IsArray(Array|String))

	assert.True(t, IsObject(FinalObject))
	assert.True(t, IsObject(FinalObject|Array))
	assert.False(t, IsObject(FinalObject|String))
	assert.False(t, IsObject(None))

	assert.True(t, IsCell(String))
	assert.True(t, IsCell(FinalObject|String))
	assert.False(t, IsCell(String|Int32))
}

func TestActionableArray(t *testing.T) {
	assert.True(t, IsActionableArray(Array))
	assert.True(t, IsActionableArray(String))
	assert.True(t, IsActionableArray(Float64Array))

	assert.True(t, IsActionableMutableArray(Array))
	assert.False(t, IsActionableMutableArray(String))
	assert.True(t, IsActionableMutableArray(Uint8Array))

	assert.False(t, IsActionableArray(Array|Int32))
	assert.False(t, IsActionableArray(None))

	assert.True(t, IsFixedIndexedStorage(ByteArray))
	assert.True(t, IsFixedIndexedStorage(Int8Array|Float32Array))
	assert.False(t, IsFixedIndexedStorage(Array))
}

func TestMergeIsJoin(t *testing.T) {
	a := Int32
	b := Double | String

	m := Merge(a, b)

	assert.Equal(t, Int32|Double|String, m)
	assert.Equal(t, m, Merge(m, a), "join is idempotent over absorbed elements")
	assert.Equal(t, Merge(b, a), m, "join is commutative")
}

func TestString(t *testing.T) {
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "Int", Int32.String())
	assert.Equal(t, "Int|Double", (Int32 | Double).String())
}
