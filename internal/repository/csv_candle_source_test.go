package repository

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `timestamp,open,high,low,close,volume
1709287200000,100,101,99,100.5,12
1709288100000,100.5,102,100,101.5,8.25
1709289000000,101.5,103,101,102,3
`

func TestReadCandlesCSV(t *testing.T) {
	s, err := ReadCandlesCSV(strings.NewReader(sampleCSV), "BTC-USDT-SWAP", "15m")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, "BTC-USDT-SWAP", s.Symbol)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), s.Candles[0].Time)
	assert.Equal(t, 101.5, s.Candles[1].Close)
	assert.Equal(t, 8.25, s.Candles[1].Volume)
	assert.Equal(t, 102.0, s.Last().Close)
}

func TestReadCandlesCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"short row", "1709287200000,100,101,99\n"},
		{"bad price", "1709287200000,100,x,99,100,1\n"},
		{"bad timestamp", "1709287200000,100,101,99,100,1\nnope,100,101,99,100,1\n"},
		{"out of order", "1709288100000,100,101,99,100,1\n1709287200000,100,101,99,100,1\n"},
		{"empty", "timestamp,open,high,low,close,volume\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCandlesCSV(strings.NewReader(tt.in), "X", "15m")
			assert.Error(t, err)
		})
	}
}

func TestWriteCandlesCSVRoundTrip(t *testing.T) {
	s, err := ReadCandlesCSV(strings.NewReader(sampleCSV), "BTC-USDT-SWAP", "15m")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCandlesCSV(&buf, s))
	assert.Equal(t, sampleCSV, buf.String())
}
