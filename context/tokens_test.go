package context

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patterncore/pattern/entity"
)

func TestTokenEstimator_CountNonEmpty(t *testing.T) {
	e := NewTokenEstimator("gpt-4o")
	count := e.Count("hello world, this is a test sentence")
	assert.Greater(t, count, 0)
}

func TestTokenEstimator_CountMessagesIncludesOverhead(t *testing.T) {
	e := NewTokenEstimator("gpt-4o")
	messages := []entity.Message{
		{Role: entity.RoleUser, Content: entity.MessageContent{Text: "hi"}},
	}
	single := e.Count("hi") + e.Count(string(entity.RoleUser))
	total := e.CountMessages(messages)
	assert.Greater(t, total, single)
}

func TestTokenEstimator_CachesEncodingAcrossInstances(t *testing.T) {
	a := NewTokenEstimator("gpt-4o")
	b := NewTokenEstimator("gpt-4o")
	assert.Equal(t, a.Count("same text either way"), b.Count("same text either way"))
}
