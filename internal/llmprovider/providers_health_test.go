package llmprovider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kari-ai/core/internal/llmprovider"
)

func TestAnthropic_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewAnthropic("", "")
	assert.False(t, p.CheckHealth(context.Background()).OK)
}

func TestAnthropic_CheckHealth_Configured(t *testing.T) {
	p := llmprovider.NewAnthropic("sk-ant-test", "")
	assert.True(t, p.CheckHealth(context.Background()).OK)
}

func TestGemini_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewGemini("", "")
	assert.False(t, p.CheckHealth(context.Background()).OK)
}

func TestDeepSeek_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewDeepSeek("", "")
	assert.False(t, p.CheckHealth(context.Background()).OK)
}

func TestCohere_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewCohere("", "")
	assert.False(t, p.CheckHealth(context.Background()).OK)
}

func TestHuggingFace_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewHuggingFace("", "")
	assert.False(t, p.CheckHealth(context.Background()).OK)
}

func TestHuggingFace_Name(t *testing.T) {
	p := llmprovider.NewHuggingFace("key", "")
	assert.Equal(t, "huggingface", p.Name())
}
