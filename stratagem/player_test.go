package stratagem_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/stephen-fox/bootkit/stratagem"
)

type call struct {
	kind   stratagem.Kind
	src    uint64
	length uint64
	dst    uint64
}

type fakeTarget struct {
	calls  []call
	failAt int
}

func (o *fakeTarget) record(c call) error {
	o.calls = append(o.calls, c)
	if o.failAt > 0 && len(o.calls) == o.failAt {
		return errors.New("target did not respond")
	}
	return nil
}

func (o *fakeTarget) ChecksumWrite(ctx context.Context, src uint64, length uint64, dst uint64) error {
	return o.record(call{kind: stratagem.ChecksumWriteKind, src: src, length: length, dst: dst})
}

func (o *fakeTarget) CopyBlock(ctx context.Context, src uint64, length uint64, dst uint64) error {
	return o.record(call{kind: stratagem.CopyBlockKind, src: src, length: length, dst: dst})
}

func TestPlayer_Apply_InOrder(t *testing.T) {
	s := newTestStratagem(t)
	target := &fakeTarget{}

	logs := bytes.NewBuffer(nil)
	player := &stratagem.Player{
		OptLogger: log.New(logs, "", 0),
	}

	result, err := player.Apply(context.Background(), s, target)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Applied)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []call{
		{kind: stratagem.ChecksumWriteKind, src: 0x80001234, length: 4, dst: 0x87800000},
		{kind: stratagem.CopyBlockKind, src: 0x80004000, length: 12, dst: 0x87800004},
		{kind: stratagem.ChecksumWriteKind, src: 0, length: 0x100, dst: 0xffffffffffffff00},
	}, target.calls)
	assert.Contains(t, logs.String(), "operation 2/3: copy 0x80004000+12 -> 0x87800004")
}

func TestPlayer_Apply_StopsAtFirstError(t *testing.T) {
	s := newTestStratagem(t)
	target := &fakeTarget{failAt: 2}

	result, err := (&stratagem.Player{}).Apply(context.Background(), s, target)

	var applyErr *stratagem.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, 1, applyErr.Index)
	assert.Equal(t, stratagem.CopyBlockKind, applyErr.Op.Kind())
	assert.Equal(t, 1, result.Applied)
	assert.Len(t, target.calls, 2)
}

func TestPlayer_Apply_Cancelled(t *testing.T) {
	s := newTestStratagem(t)
	target := &fakeTarget{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := (&stratagem.Player{}).Apply(ctx, s, target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Applied)
	assert.Empty(t, target.calls)
}

func TestPlayer_Apply_Goto(t *testing.T) {
	s := newTestStratagem(t)
	target := &fakeTarget{}

	player := &stratagem.Player{
		Goto:           2,
		OptPauseReader: strings.NewReader("\n"),
	}

	result, err := player.Apply(context.Background(), s, target)
	require.Error(t, err)

	// The first pause consumed the only newline, so playback
	// stops at the second pause.
	assert.Equal(t, 2, result.Applied)
	assert.Len(t, target.calls, 2)
}
