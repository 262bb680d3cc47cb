package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestShutdown_IsIdempotent(t *testing.T) {
	calls := 0
	c := &Core{
		logger: zap.NewNop(),
		closers: []closer{
			{name: "a", fn: func() error { calls++; return nil }},
			{name: "b", fn: func() error { calls++; return nil }},
		},
	}

	err1 := c.Shutdown(context.Background())
	err2 := c.Shutdown(context.Background())

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, 2, calls, "each closer runs exactly once across any number of Shutdown calls")
}

func TestShutdown_ClosesInReverseOrder(t *testing.T) {
	var order []string
	c := &Core{
		logger: zap.NewNop(),
		closers: []closer{
			{name: "first", fn: func() error { order = append(order, "first"); return nil }},
			{name: "second", fn: func() error { order = append(order, "second"); return nil }},
			{name: "third", fn: func() error { order = append(order, "third"); return nil }},
		},
	}

	_ = c.Shutdown(context.Background())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdown_ReturnsFirstErrorButRunsAllClosers(t *testing.T) {
	ran := 0
	c := &Core{
		logger: zap.NewNop(),
		closers: []closer{
			{name: "a", fn: func() error { ran++; return nil }},
			{name: "b", fn: func() error { ran++; return errors.New("boom") }},
		},
	}

	err := c.Shutdown(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, ran)
}
