package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func TestValueRoundTripsThroughJSON(t *testing.T) {
	in := model.MapValue(map[string]model.Value{
		"ip":    model.StringValue("203.0.113.9"),
		"count": model.NumberValue(3),
		"bot":   model.BoolValue(true),
		"tags":  model.ListValue(model.StringValue("a"), model.StringValue("b")),
		"empty": model.NullValue(),
	})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out model.Value
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, model.KindMap, out.Kind)
	assert.Equal(t, "203.0.113.9", out.Map["ip"].Str)
	assert.Equal(t, float64(3), out.Map["count"].Num)
	assert.True(t, out.Map["bot"].Bool)
	assert.Len(t, out.Map["tags"].List, 2)
	assert.Equal(t, model.KindNull, out.Map["empty"].Kind)
}

func TestValueStringRendersMapSortedByKey(t *testing.T) {
	v := model.MapValue(map[string]model.Value{
		"z": model.StringValue("last"),
		"a": model.StringValue("first"),
	})
	assert.Equal(t, "{a: first, z: last}", v.String())
}

func TestFromAnyHandlesNestedStructures(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"n":1,"l":[true,"x"]}`), &decoded))

	v := model.FromAny(decoded)
	require.Equal(t, model.KindMap, v.Kind)
	assert.Equal(t, float64(1), v.Map["n"].Num)
	assert.Equal(t, model.KindList, v.Map["l"].Kind)
	assert.True(t, v.Map["l"].List[0].Bool)
	assert.Equal(t, "x", v.Map["l"].List[1].Str)
}
