package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampScore(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 3: 3, 5: 5, 6: 5, 100: 5} {
		assert.Equal(t, want, ClampScore(in), "input %d", in)
	}
}

func TestAnnotation_HasScore(t *testing.T) {
	assert.False(t, Annotation{}.HasScore())
	assert.True(t, Annotation{Score: 4}.HasScore())
}

func TestAnnotation_IsComplete(t *testing.T) {
	assert.True(t, Annotation{Instruction: "q", Response: "a"}.IsComplete())
	assert.False(t, Annotation{Instruction: "  ", Response: "a"}.IsComplete())
	assert.False(t, Annotation{Instruction: "q"}.IsComplete())
}

func TestPartition_CompleteAndDisjoint(t *testing.T) {
	anns := []Annotation{
		{Instruction: "a"},
		{Instruction: "b", Finetuned: true},
		{Instruction: "c"},
		{Instruction: "d", Finetuned: true},
		{Instruction: "e"},
	}

	tuned, untuned := Partition(anns)

	assert.Len(t, tuned, 2)
	assert.Len(t, untuned, 3)
	assert.Equal(t, len(anns), len(tuned)+len(untuned))
	assert.Equal(t, "a", untuned[0].Instruction)
	assert.Equal(t, "c", untuned[1].Instruction)
	assert.Equal(t, "e", untuned[2].Instruction)
	for _, a := range tuned {
		assert.True(t, a.Finetuned)
	}
}

func TestPartition_Empty(t *testing.T) {
	tuned, untuned := Partition(nil)
	assert.Empty(t, tuned)
	assert.Empty(t, untuned)
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]Annotation{
		{Score: 5},
		{Score: 3, Finetuned: true},
		{},
	})
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Scored)
	assert.InDelta(t, 4.0, stats.AverageScore, 0.001)
	assert.Equal(t, 1, stats.Tuned)
	assert.Equal(t, 2, stats.Untuned)
}

func TestCloneAnnotations_DeepCopy(t *testing.T) {
	id := int64(7)
	src := []Annotation{{Instruction: "q", TrainingItemID: &id, LinkedJobs: []LinkedJob{{JobID: "j1"}}}}

	out := CloneAnnotations(src)
	require.Len(t, out, 1)
	*out[0].TrainingItemID = 9
	out[0].LinkedJobs[0].JobID = "changed"

	assert.Equal(t, int64(7), *src[0].TrainingItemID)
	assert.Equal(t, "j1", src[0].LinkedJobs[0].JobID)
}
