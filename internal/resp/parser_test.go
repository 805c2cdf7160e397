package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCommand(parts ...string) Frame {
	f := NewArray()
	for _, p := range parts {
		f.PushBulk([]byte(p))
	}
	return f
}

func TestParserWalksCommandArguments(t *testing.T) {
	p, err := NewParser(buildCommand("set", "key", "value"))
	require.NoError(t, err)

	verb, err := p.NextString()
	require.NoError(t, err)
	assert.Equal(t, "set", verb)

	key, err := p.NextString()
	require.NoError(t, err)
	assert.Equal(t, "key", key)

	value, err := p.NextBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	require.NoError(t, p.Finish())
}

func TestParserFinishRejectsLeftoverArguments(t *testing.T) {
	p, err := NewParser(buildCommand("get", "key", "extra"))
	require.NoError(t, err)

	_, err = p.NextString()
	require.NoError(t, err)
	_, err = p.NextString()
	require.NoError(t, err)

	assert.Error(t, p.Finish())
}

func TestParserNextStringAtEndOfStream(t *testing.T) {
	p, err := NewParser(buildCommand("ping"))
	require.NoError(t, err)

	_, err = p.NextString()
	require.NoError(t, err)

	_, err = p.NextString()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestNewParserRejectsNonArrayFrame(t *testing.T) {
	_, err := NewParser(Simple("OK"))
	assert.Error(t, err)
}

func TestParserNextIntAcceptsIntegerFrame(t *testing.T) {
	f := NewArray()
	f.PushInt(100)
	p, err := NewParser(f)
	require.NoError(t, err)

	n, err := p.NextInt()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)
}
