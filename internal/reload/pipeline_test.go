package reload

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(ran *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*ran = append(*ran, name)
		return err
	}
}

func TestRunOrder(t *testing.T) {
	var ran []string
	p := NewPipeline(zerolog.Nop())
	require.NoError(t, p.Register(Stage{Name: "anti-spam", After: []string{"channels"}, Run: recorder(&ran, "anti-spam", nil)}))
	require.NoError(t, p.Register(Stage{Name: "match", After: []string{"channels"}, Run: recorder(&ran, "match", nil)}))
	require.NoError(t, p.Register(Stage{Name: "channels", After: []string{"rosters"}, Run: recorder(&ran, "channels", nil)}))
	require.NoError(t, p.Register(Stage{Name: "rosters", Run: recorder(&ran, "rosters", nil)}))
	require.NoError(t, p.Register(Stage{Name: "messages", Run: recorder(&ran, "messages", nil)}))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []string{"messages", "rosters", "channels", "anti-spam", "match"}, ran)

	assert.ErrorIs(t, p.Register(Stage{Name: "match"}), ErrDuplicateName)
}

func TestRunStopsAtFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	p := NewPipeline(zerolog.Nop())
	require.NoError(t, p.Register(Stage{Name: "a", Run: recorder(&ran, "a", boom)}))
	require.NoError(t, p.Register(Stage{Name: "b", After: []string{"a"}, Run: recorder(&ran, "b", nil)}))

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, ran)
}

func TestOrderErrors(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	require.NoError(t, p.Register(Stage{Name: "a", After: []string{"b"}}))
	require.NoError(t, p.Register(Stage{Name: "b", After: []string{"a"}}))
	_, err := p.Order()
	assert.ErrorIs(t, err, ErrCycle)

	p = NewPipeline(zerolog.Nop())
	require.NoError(t, p.Register(Stage{Name: "a", After: []string{"ghost"}}))
	_, err = p.Order()
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestRunCancelled(t *testing.T) {
	var ran []string
	p := NewPipeline(zerolog.Nop())
	require.NoError(t, p.Register(Stage{Name: "a", Run: recorder(&ran, "a", nil)}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
	assert.Empty(t, ran)
}
