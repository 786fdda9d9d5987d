package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/config"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/tree"
)

func TestCompilePattern_Structure(t *testing.T) {
	cfg := config.Default().Pattern
	p, err := CompilePattern(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "Seq(KC(Leaf(Trip:a)),Leaf(Trip:b))", p.Seq.StructureSummary())
	assert.Equal(t, tree.ModeGreedy, p.Kleene.Config().Mode)
	assert.Equal(t, cfg.MinSize, p.Kleene.Config().MinSize)
	assert.Equal(t, cfg.MaxSize, p.Kleene.Config().MaxSize)
	assert.Equal(t, time.Hour, p.Kleene.Config().Window)
	assert.Len(t, p.Accessors, 3)
}

func TestCompilePattern_ExhaustiveMode(t *testing.T) {
	cfg := config.Default().Pattern
	cfg.Mode = config.ModeExhaustive
	p, err := CompilePattern(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, tree.ModeExhaustive, p.Kleene.Config().Mode)
}

func TestCompilePattern_AccessorsExtractKeys(t *testing.T) {
	p, err := CompilePattern(config.Default().Pattern, nil)
	require.NoError(t, err)

	payload := event.Payload{
		"entity":      "b7",
		"origin":      "3001",
		"destination": "3186",
	}
	assert.Equal(t, "b7", p.Accessors[0](payload))
	assert.Equal(t, "3001", p.Accessors[1](payload))
	assert.Equal(t, "3186", p.Accessors[2](payload))
}

func TestCompilePattern_RegisteredAccessorWins(t *testing.T) {
	condition.RegisterAccessor("rider", func(p event.Payload) string {
		return p.GetString("entity")
	})

	cfg := config.Default().Pattern
	cfg.EntityKey = "rider"
	p, err := CompilePattern(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "b9", p.Accessors[0](event.Payload{"entity": "b9"}))
}
