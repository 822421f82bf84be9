package jsonutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	var got struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	require.NoError(t, Unmarshal([]byte(`{"name":"test","value":42,"extra":true}`), &got))
	assert.Equal(t, "test", got.Name)
	assert.Equal(t, 42, got.Value)

	assert.Error(t, Unmarshal([]byte(`{invalid}`), &got))
}

func TestMarshalDeterministic(t *testing.T) {
	data, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}

func TestLenientUTF8(t *testing.T) {
	var got struct {
		S string `json:"s"`
	}
	raw := []byte("{\"s\":\"caf\xe9\"}")
	assert.Error(t, Unmarshal(raw, &got))
	require.NoError(t, Unmarshal(raw, &got, Lenient))
	assert.Contains(t, got.S, "caf")
}

func TestObject(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"keep":"yes","skip":[1,2,{"x":1}],"also":5}`))
	seen := map[string]string{}
	err := Object(dec, func(name string) error {
		if name == "skip" {
			return dec.SkipValue()
		}
		v, err := dec.ReadValue()
		seen[name] = string(v)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep": `"yes"`, "also": "5"}, seen)
}

func TestObject_NotObject(t *testing.T) {
	dec := jsontext.NewDecoder(strings.NewReader(`[1]`))
	err := Object(dec, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]string{"k": "v"}))
	require.NoError(t, enc.Encode([]int{1}))
	assert.Equal(t, "{\"k\":\"v\"}\n[1]\n", buf.String())
}
