package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "error", "phase", "detail", "debug"} {
		l, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, l.String())
	}
	l, err := ParseLevel("DETAIL")
	require.NoError(t, err)
	assert.Equal(t, LevelDetail, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevelScopes(t *testing.T) {
	assert.True(t, LevelPhase.ShouldEmit(ScopePhase))
	assert.False(t, LevelPhase.ShouldEmit(ScopeFile))
	assert.True(t, LevelDetail.ShouldEmit(ScopeFile))
	assert.False(t, LevelDetail.ShouldEmit(ScopeNode))
	assert.True(t, LevelDebug.ShouldEmit(ScopeNode))
	assert.False(t, LevelError.ShouldEmit(ScopeDriver))
	assert.False(t, LevelOff.ShouldEmit(ScopeDriver))
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)

	root := Begin(tr, ScopeDriver, "build", 0)
	file := Begin(tr, ScopeFile, "file:A.kt", root.ID())
	Begin(tr, ScopeNode, "node", file.ID()).End("")
	file.WithExtra("nodes", "3").End("")
	root.End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4, "node scope is filtered at detail level")

	var ev jsonEvent
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &ev))
	assert.Equal(t, "end", ev.Kind)
	assert.Equal(t, "file", ev.Scope)
	assert.Equal(t, root.ID(), ev.ParentID)
	assert.Equal(t, map[string]string{"nodes": "3"}, ev.Extra)

	require.NoError(t, json.Unmarshal([]byte(lines[3]), &ev))
	assert.Equal(t, "ok", ev.Detail)
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	Point(tr, ScopePhase, "cache", "hit", 0)
	Point(tr, ScopeFile, "skipped", "", 0)

	out := buf.String()
	assert.Contains(t, out, "[phase ] • cache (hit)")
	assert.NotContains(t, out, "skipped")
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeNode, name, "", 0)
	}
	var names []string
	for _, ev := range r.Snapshot() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)

	var buf bytes.Buffer
	require.NoError(t, r.Dump(&buf, FormatText))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestNewSelectsImplementation(t *testing.T) {
	tr, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, tr.Enabled())

	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	require.NoError(t, err)
	require.NotNil(t, RingOf(tr))
	Point(tr, ScopeDriver, "x", "", 0)
	assert.Len(t, RingOf(tr).Snapshot(), 1)
	assert.NotEmpty(t, buf.String())

	_, err = ParseMode("tape")
	assert.Error(t, err)
}

func TestContextPropagation(t *testing.T) {
	assert.Equal(t, Nop, FromContext(context.Background()))

	r := NewRingTracer(8, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	assert.Same(t, r, FromContext(ctx))

	ctx = WithSpanContext(ctx, SpanContext{SpanID: 7})
	assert.Equal(t, uint64(7), CurrentSpan(ctx).SpanID)
}

func TestDisabledSpanIsInert(t *testing.T) {
	s := Begin(Nop, ScopeDriver, "build", 0)
	assert.Equal(t, uint64(0), s.ID())
	assert.Zero(t, s.WithExtra("k", "v").End(""))
}

func TestHeartbeatStopIsIdempotent(t *testing.T) {
	assert.Nil(t, StartHeartbeat(Nop, 0))
	var h *Heartbeat
	h.Stop()
}
