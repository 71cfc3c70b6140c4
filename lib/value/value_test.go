package value

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	five := 5
	var nilPtr *int

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"uint32", uint32(7), Int(7)},
		{"float32", float32(1.5), Float(1.5)},
		{"string", "abc", String("abc")},
		{"bool", true, Bool(true)},
		{"pointer", &five, Int(5)},
		{"nil pointer", nilPtr, Null()},
		{"slice", []string{"a", "b"}, Array([]Value{String("a"), String("b")})},
		{"nil slice", []int(nil), Array([]Value{})},
		{"array", [2]int{1, 2}, Array([]Value{Int(1), Int(2)})},
		{"passthrough", String("x"), String("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Of(tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "want %s, got %s", tt.want, got)
			assert.Equal(t, tt.want.Kind, got.Kind)
		})
	}
}

func TestOfUnsupported(t *testing.T) {
	_, err := Of(map[string]int{"a": 1})
	assert.Error(t, err)

	_, err = Of(struct{ A int }{1})
	assert.Error(t, err)
}

func TestOfUnsignedOverflow(t *testing.T) {
	v, err := Of(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, Int(math.MaxInt64), v)

	_, err = Of(uint64(math.MaxInt64) + 1)
	assert.Error(t, err)

	_, err = Of([]uint64{1, math.MaxUint64})
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInt, KindOf(reflect.TypeOf(uint16(0))))
	assert.Equal(t, KindFloat, KindOf(reflect.TypeOf(0.0)))
	assert.Equal(t, KindString, KindOf(reflect.TypeOf((*string)(nil))))
	assert.Equal(t, KindArray, KindOf(reflect.TypeOf([]string{})))
	assert.Equal(t, KindInvalid, KindOf(reflect.TypeOf(map[string]int{})))
	assert.Equal(t, KindInvalid, KindOf(reflect.TypeOf([]map[string]int{})))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int int", Int(1), Int(1), true},
		{"int float", Int(24), Float(24), true},
		{"int float differ", Int(24), Float(24.5), false},
		{"string", String("a"), String("a"), true},
		{"string vs int", String("1"), Int(1), false},
		{"bool", Bool(true), Bool(false), false},
		{"null null", Null(), Null(), true},
		{"null int", Null(), Int(0), false},
		{"arrays", Strings([]string{"a", "b"}), Strings([]string{"a", "b"}), true},
		{"arrays differ in order", Strings([]string{"a", "b"}), Strings([]string{"b", "a"}), false},
		{"arrays differ in length", Strings([]string{"a"}), Strings([]string{"a", "b"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Value
		want   int
		wantOk bool
	}{
		{"ints", Int(20), Int(29), -1, true},
		{"ints equal", Int(3), Int(3), 0, true},
		{"int float", Int(3), Float(2.5), 1, true},
		{"large ints stay exact", Int(1<<62 + 1), Int(1 << 62), 1, true},
		{"strings", String("N9"), String("N10"), 1, true},
		{"bools", Bool(false), Bool(true), -1, true},
		{"string vs int", String("1"), Int(1), 0, false},
		{"arrays", Strings(nil), Strings(nil), 0, false},
		{"null", Null(), Int(1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContains(t *testing.T) {
	arr := Strings([]string{"friend 1", "friendz 1"})

	assert.True(t, Contains(arr, String("friend 1")))
	assert.False(t, Contains(arr, String("friend 2")))
	assert.False(t, Contains(String("friend 1"), String("friend 1")))
	assert.True(t, ContainsAny(arr, []Value{String("x"), String("friendz 1")}))
	assert.False(t, ContainsAny(arr, nil))
	assert.True(t, Contains(Array([]Value{Int(1), Int(2)}), Float(2)))
}

func TestString(t *testing.T) {
	assert.Equal(t, `["a", 1, true, null]`, Array([]Value{String("a"), Int(1), Bool(true), Null()}).String())
	assert.Equal(t, []any{"a", int64(1)}, Array([]Value{String("a"), Int(1)}).Interface())
}
