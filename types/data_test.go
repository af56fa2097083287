package types_test

import (
	"math"
	"strconv"
	"testing"

	"github.com/Esclender/dai-assistant/types"
	"github.com/stretchr/testify/assert"
)

type testStruct struct {
	Name   string
	Age    int
	IsMale bool
}

func TestData(t *testing.T) {
	data := &types.Data{}

	data.Set("teststruct1", testStruct{"hello", 4, false})
	data.Set("teststruct2", testStruct{"kitty", 5, true})

	hello := &testStruct{}
	kitty := &testStruct{}
	assert.Nil(t, data.GetStruct("teststruct1", hello))
	assert.Nil(t, data.GetStruct("teststruct2", kitty))

	assert.Equal(t, "hello", hello.Name)
	assert.Equal(t, 4, hello.Age)
	assert.Equal(t, false, hello.IsMale)

	assert.Equal(t, "kitty", kitty.Name)
	assert.Equal(t, 5, kitty.Age)
	assert.Equal(t, true, kitty.IsMale)

	data.Set("s1", 1)
	data.Set("s2", "2")
	data.Set("s3", math.Pi)
	data.Set("s4", true)

	_, exists := data.Get("s0")
	assert.False(t, exists)

	s, exists := data.GetString("s1")
	assert.True(t, exists)
	assert.Equal(t, "1", s)
	s, exists = data.GetString("s2")
	assert.True(t, exists)
	assert.Equal(t, "2", s)
	s, exists = data.GetString("s3")
	assert.True(t, exists)
	assert.Equal(t, strconv.FormatFloat(math.Pi, 'f', -1, 64), s)
	s, exists = data.GetString("s4")
	assert.True(t, exists)
	assert.Equal(t, "true", s)
}

func TestDataClone(t *testing.T) {
	data := &types.Data{}
	data.Set("k1", "v1")
	data.Set("k2", 2)

	cloned := data.Clone()
	cloned.Set("k1", "changed")
	cloned.Set("k3", true)

	s, _ := data.GetString("k1")
	assert.Equal(t, "v1", s)
	_, exists := data.Get("k3")
	assert.False(t, exists)
	assert.Equal(t, 3, len(cloned))
}

func TestDataMerge(t *testing.T) {
	data := &types.Data{}
	data.Set("declared", "mine")

	data.Merge(types.Data{"declared": "theirs", "synthesized": "ok"})

	// existing keys win over merged ones
	s, _ := data.GetString("declared")
	assert.Equal(t, "mine", s)
	s, _ = data.GetString("synthesized")
	assert.Equal(t, "ok", s)
}
