package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArrayRoundTrip(t *testing.T) {
	frame := "3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	r := bufio.NewReader(strings.NewReader(frame))
	args, err := DecodeArray(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"SET", "foo", "bar"}, args)
}

func TestDecodeArrayRejectsMalformedBulkHeader(t *testing.T) {
	frame := "1\r\n:not-a-bulk\r\n"
	r := bufio.NewReader(strings.NewReader(frame))
	_, err := DecodeArray(r)
	assert.Error(t, err)
}

func TestParseArgsDispatch(t *testing.T) {
	cmd := ParseArgs([]string{"SET", "foo", "bar"})
	assert.Equal(t, KindSet, cmd.Kind)
	assert.True(t, cmd.RESP)
	assert.Equal(t, "bar", cmd.Value)

	cmd = ParseArgs([]string{"MGET", "a", "b"})
	assert.Equal(t, KindMget, cmd.Kind)
	assert.Equal(t, []string{"a", "b"}, cmd.Keys)

	cmd = ParseArgs([]string{"MGET"})
	assert.Equal(t, KindUnknown, cmd.Kind)

	cmd = ParseArgs(nil)
	assert.Equal(t, KindUnknown, cmd.Kind)
	assert.True(t, cmd.RESP)
}

func TestEncodeRESPShapes(t *testing.T) {
	assert.Equal(t, []byte("+OK\r\n"), EncodeRESP(Response{Kind: RespOK}))
	assert.Equal(t, []byte("$3\r\nbar\r\n"), EncodeRESP(Response{Kind: RespValue, Value: "bar"}))
	assert.Equal(t, []byte("$-1\r\n"), EncodeRESP(Response{Kind: RespNil}))
	assert.Equal(t, []byte("-ERROR: boom\r\n"), EncodeRESP(Response{Kind: RespErr, ErrMsg: "boom"}))

	out := EncodeRESP(Response{Kind: RespValues, Values: []OptValue{{Value: "a", Ok: true}, {Ok: false}}})
	assert.Equal(t, []byte("*2\r\n$1\r\na\r\n$-1\r\n"), out)
}

func TestEncodeTextShapes(t *testing.T) {
	assert.Equal(t, []byte("OK\n"), EncodeText(Response{Kind: RespOK}))
	assert.Equal(t, []byte("bar\n"), EncodeText(Response{Kind: RespValue, Value: "bar"}))
	assert.Equal(t, []byte("(nil)\n"), EncodeText(Response{Kind: RespNil}))
	assert.Equal(t, []byte("ERROR: boom\n"), EncodeText(Response{Kind: RespErr, ErrMsg: "boom"}))

	out := EncodeText(Response{Kind: RespValues, Values: []OptValue{{Value: "a", Ok: true}, {Ok: false}}})
	assert.Equal(t, []byte("a (nil)\n"), out)
}
