package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	data, err := EncodeFrame(EventSendLogs, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"send logs","args":[null]}`, string(data))

	data, err = EncodeFrame(EventAuth, "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"auth","args":["tok"]}`, string(data))

	data, err = EncodeFrame(EventAuthSuccess)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"auth success","args":[]}`, string(data))
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"console output","args":["hello"]}`))
	require.NoError(t, err)
	assert.Equal(t, EventConsoleOutput, f.Event)
	line, ok := f.StringArg(0)
	assert.True(t, ok)
	assert.Equal(t, "hello", line)

	_, ok = f.StringArg(1)
	assert.False(t, ok)

	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
	_, err = ParseFrame([]byte(`{"args":["x"]}`))
	assert.Error(t, err)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"one"}, splitLines("one\n"))
	assert.Equal(t, []string{"one", "two"}, splitLines("one\r\ntwo"))
	assert.Equal(t, []string{"one", "", "two"}, splitLines("one\n\ntwo\r\n"))
}
