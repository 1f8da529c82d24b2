package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTextBasicCommands(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"GET foo\n", Command{Kind: KindGet, Key: "foo"}},
		{"DEL foo\n", Command{Kind: KindDel, Key: "foo"}},
		{"COMPACT\n", Command{Kind: KindCompact}},
		{"STATS\n", Command{Kind: KindStats}},
		{"FLUSH\n", Command{Kind: KindFlush}},
		{"get foo\n", Command{Kind: KindGet, Key: "foo"}},
	}
	for _, c := range cases {
		got := ParseText(c.line)
		assert.Equal(t, c.want, got, "line=%q", c.line)
	}
}

func TestParseTextSetPreservesSpacesInValue(t *testing.T) {
	cmd := ParseText("SET foo hello world\n")
	assert.Equal(t, KindSet, cmd.Kind)
	assert.Equal(t, "foo", cmd.Key)
	assert.Equal(t, "hello world", cmd.Value)
	assert.Equal(t, 0, cmd.TTLSeconds)
}

func TestParseTextSetWithTTLClause(t *testing.T) {
	cmd := ParseText("SET foo bar EX 30\n")
	assert.Equal(t, KindSet, cmd.Kind)
	assert.Equal(t, "bar", cmd.Value)
	assert.Equal(t, 30, cmd.TTLSeconds)

	cmd2 := ParseText("SET foo bar baz TTL 60\n")
	assert.Equal(t, "bar baz", cmd2.Value)
	assert.Equal(t, 60, cmd2.TTLSeconds)
}

func TestParseTextDelRejectsWrongArity(t *testing.T) {
	cmd := ParseText("DEL\n")
	assert.Equal(t, KindUnknown, cmd.Kind)

	cmd2 := ParseText("DEL a b\n")
	assert.Equal(t, KindUnknown, cmd2.Kind)
}

func TestParseTextMget(t *testing.T) {
	cmd := ParseText("MGET a b c\n")
	assert.Equal(t, KindMget, cmd.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, cmd.Keys)
}

func TestParseTextEmptyMgetIsUnknown(t *testing.T) {
	cmd := ParseText("MGET\n")
	assert.Equal(t, KindUnknown, cmd.Kind)
}

func TestParseTextUnknownVerb(t *testing.T) {
	cmd := ParseText("BOGUS a b\n")
	assert.Equal(t, KindUnknown, cmd.Kind)
}
