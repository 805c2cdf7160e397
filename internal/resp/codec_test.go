package resp

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		want Frame
	}{
		{"simple", Simple("OK")},
		{"error", Err("ERR bad thing")},
		{"integer", Integer(42)},
		{"bulk", BulkString("hello")},
		{"null", Null()},
		{"empty array", NewArray()},
		{"nested array", func() Frame {
			f := NewArray()
			f.PushBulk([]byte("get"))
			f.PushBulk([]byte("key"))
			return f
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			require.NoError(t, Write(w, tt.want))
			require.NoError(t, w.Flush())

			n, err := Check(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, buf.Len(), n)

			got, consumed, err := Parse(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, n, consumed)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestCheckIncompleteFrame(t *testing.T) {
	full := Integer(7)
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Write(w, full))
	require.NoError(t, w.Flush())

	partial := buf.Bytes()[:buf.Len()-1]
	_, err := Check(partial)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestCheckRejectsGarbage(t *testing.T) {
	_, err := Check([]byte("garbage\r\n"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrIncomplete))
}

func TestParseArrayWithMixedElements(t *testing.T) {
	f := NewArray()
	f.PushBulk([]byte("set"))
	f.PushBulk([]byte("key"))
	f.PushInt(5)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Write(w, f))
	require.NoError(t, w.Flush())

	got, _, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got.Array, 3)
	assert.Equal(t, KindInteger, got.Array[2].Kind)
	assert.Equal(t, uint64(5), got.Array[2].Int)
}
