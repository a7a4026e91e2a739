package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewGeminiDefaultsModel(t *testing.T) {
	g, err := NewGemini(context.Background(), "test-key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())
}

func TestFuncAdapter(t *testing.T) {
	var got string
	gen := Func(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "ok", nil
	})

	out, err := gen.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "hola", got)

	boom := errors.New("boom")
	_, err = Func(func(context.Context, string) (string, error) { return "", boom }).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
