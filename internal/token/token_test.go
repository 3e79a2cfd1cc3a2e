package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateFast(t *testing.T) {
	assert.Equal(t, 0, EstimateFast(""))

	// Long runs of text estimate by runes/4.
	assert.Equal(t, 25, EstimateFast(strings.Repeat("abcd", 25)))

	// Many short words estimate by word count.
	assert.Equal(t, 10, EstimateFast("a b c d e f g h i j"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("anything", 0))
	assert.Equal(t, "", Truncate("anything", -1))

	short := "hello world"
	assert.Equal(t, short, Truncate(short, 100), "under the limit is returned unchanged")

	long := strings.Repeat("word ", 500)
	cut := Truncate(long, 50)
	assert.Less(t, len(cut), len(long))
	assert.True(t, strings.HasPrefix(long, cut))
}

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, Count(""))
}
