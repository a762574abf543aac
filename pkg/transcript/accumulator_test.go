package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorEmpty(t *testing.T) {
	acc := NewAccumulator()

	assert.True(t, acc.IsEmpty())
	assert.Equal(t, 0, acc.Len())
	assert.Equal(t, "", acc.Get())
}

func TestAccumulatorPreservesInsertionOrder(t *testing.T) {
	acc := NewAccumulator()

	lines := []string{
		"user: hello",
		"assistant: hi, how can I help?",
		"user: I need an appointment",
	}
	for _, line := range lines {
		acc.Add(line)
	}

	assert.False(t, acc.IsEmpty())
	assert.Equal(t, len(lines), acc.Len())
	assert.Equal(t, strings.Join(lines, "\n"), acc.Get())
}

func TestAccumulatorDeterministic(t *testing.T) {
	first := NewAccumulator()
	second := NewAccumulator()

	for _, line := range []string{"a", "b", "c"} {
		first.Add(line)
		second.Add(line)
	}

	assert.Equal(t, first.Get(), second.Get())
}

func TestAccumulatorKeepsDuplicatesAndNeverReorders(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("user: yes")
	acc.Add("user: yes")

	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, "user: yes\nuser: yes", acc.Get())
}
