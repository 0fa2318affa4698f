package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"100":     10000,
		"100.5":   10050,
		"100.50":  10050,
		"0.01":    1,
		"-12.34":  -1234,
		"100.500": 10050,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Cents(), in)
	}
}

func TestParse_RejectsExtraPrecision(t *testing.T) {
	_, err := Parse("10.005")
	assert.Error(t, err)

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "100.00", FromCents(10000).String())
	assert.Equal(t, "0.05", FromCents(5).String())
	assert.Equal(t, "-1.50", FromCents(-150).String())
}

func TestAmount_Percent(t *testing.T) {
	a := FromCents(10001)
	half := a.Percent(50)
	assert.Equal(t, int64(5000), half.Cents())
	assert.Equal(t, int64(5001), (a - half).Cents())
	assert.Equal(t, Zero, a.Percent(0))
	assert.Equal(t, a, a.Percent(100))
}

func TestAmount_JSON(t *testing.T) {
	var payload struct {
		Price Amount `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":"150.25"}`), &payload))
	assert.Equal(t, int64(15025), payload.Price.Cents())

	require.NoError(t, json.Unmarshal([]byte(`{"price":99.9}`), &payload))
	assert.Equal(t, int64(9990), payload.Price.Cents())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"99.90"}`, string(raw))

	assert.Error(t, json.Unmarshal([]byte(`{"price":"1.001"}`), &payload))
}

func TestAmount_Scan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan(int64(500)))
	assert.Equal(t, FromCents(500), a)

	require.NoError(t, a.Scan([]byte("700")))
	assert.Equal(t, FromCents(700), a)

	assert.Error(t, a.Scan(1.5))
}
