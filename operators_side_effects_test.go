package rxstream

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTap(t *testing.T) {
	var (
		seen      []int
		completed bool
	)
	rec := newRecorder[int]()

	Must(Tap(Must(Range(0, 3)),
		func(v int) { seen = append(seen, v) },
		nil,
		func() {
			// 回调先于下游执行
			assert.Zero(t, rec.Completions())
			completed = true
		},
	)).Subscribe(rec)

	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, []int{0, 1, 2}, rec.Values())
	assert.True(t, completed)
	assert.Equal(t, 1, rec.Completions())

	_, err := Tap[int](nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestDoOnTerminate(t *testing.T) {
	calls := 0
	Must(DoOnTerminate(Just(1), func() { calls++ })).Subscribe(nil)
	Must(DoOnTerminate(Error[int](errors.New("boom")), func() { calls++ })).Subscribe(newRecorder[int]())
	assert.Equal(t, 2, calls)

	_, err := DoOnTerminate(Just(1), nil)
	assert.ErrorIs(t, err, ErrNilTransformer)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	rec := newRecorder[string]()
	Must(Log(Just("a"), "letters")).Subscribe(rec)

	require.Equal(t, []string{"a"}, rec.Values())
	out := buf.String()
	assert.Contains(t, out, "observable next")
	assert.Contains(t, out, "stream=letters")
	assert.Contains(t, out, "value=a")
	assert.Contains(t, out, "observable complete")
}
