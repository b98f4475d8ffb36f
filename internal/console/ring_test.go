package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[string](3)
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		r.Push(v)
	}
	assert.Equal(t, []string{"c", "d", "e"}, r.Snapshot())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRingEmptyAndMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, 1, r.Cap())
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Snapshot())
}

func TestRingKeepsLastCapPushes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "cap")
		pushes := rapid.SliceOf(rapid.Int()).Draw(t, "pushes")

		r := NewRing[int](capacity)
		for i, v := range pushes {
			r.Push(v)
			if r.Len() > r.Cap() {
				t.Fatalf("len %d exceeds cap %d after %d pushes", r.Len(), r.Cap(), i+1)
			}
		}

		want := pushes
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		got := r.Snapshot()
		if len(got) != len(want) {
			t.Fatalf("snapshot has %d items, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("snapshot[%d] = %d, want %d", i, got[i], want[i])
			}
		}
	})
}
