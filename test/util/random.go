package testutil

import (
	"fmt"
	"math/rand"
	"sort"
)

// RandomSwitch returns a function picking an index with the given relative weights,
// RandomSwitch(3, 2) returns 0 three times out of five and 1 otherwise.
func RandomSwitch(weights ...int) func(rndm *rand.Rand) int {
	if len(weights) == 0 {
		panic("random switch without weights")
	}
	thresholds := make([]int, len(weights))
	sum := 0
	for i, w := range weights {
		if w <= 0 {
			panic(fmt.Sprintf("random switch weight %d is not positive", w))
		}
		sum += w
		thresholds[i] = sum
	}
	return func(rndm *rand.Rand) int {
		// first threshold strictly above the draw
		return sort.SearchInts(thresholds, rndm.Intn(sum)+1)
	}
}

const letters = "abcdefghijklmnopqrstuvwxyz"

// RandomString returns length lowercase letters drawn from rndm.
func RandomString(rndm *rand.Rand, length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = letters[rndm.Intn(len(letters))]
	}
	return string(out)
}
