package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbusmqtt/internal/objectbus"
)

func Test_Encode_Retraction(t *testing.T) {
	assert.Equal(t, []byte{}, Encode(nil))
}

func Test_Encode_Value(t *testing.T) {
	v := objectbus.FromFloat(12.6)
	data := Encode(&v)
	assert.JSONEq(t, `{"value":12.6}`, string(data))
}

func Test_Decode(t *testing.T) {
	v, err := Decode([]byte(`{"value":1}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float)
}

func Test_Decode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func Test_DecodePatterns(t *testing.T) {
	patterns, err := DecodePatterns([]byte(`["system/+/Relay/0/State"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"system/+/Relay/0/State"}, patterns)
}
