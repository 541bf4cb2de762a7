package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("empty input yields no chunks", func(t *testing.T) {
		assert.Nil(t, Split(nil))
		assert.Nil(t, Split([]Line{}))
	})

	t.Run("single small line lands in one chunk at offset 0", func(t *testing.T) {
		chunks := Split([]Line{{Number: 1, Text: "hello world"}})
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Number)
		assert.Equal(t, "hello world", chunks[0].Text)
		require.Len(t, chunks[0].Lines, 1)
		assert.Equal(t, 0, chunks[0].Lines[0].LineOffsetInChunk)
	})

	t.Run("lines group until the target then a new chunk starts", func(t *testing.T) {
		// 100 bytes + newline per line: 10 lines fill a 1 KiB chunk, the
		// 11th starts chunk 1.
		line := strings.Repeat("x", 100)
		var lines []Line
		for i := 1; i <= 11; i++ {
			lines = append(lines, Line{Number: i, Text: line})
		}

		chunks := Split(lines)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0].Lines, 10)
		assert.Len(t, chunks[1].Lines, 1)
		assert.Equal(t, 1, chunks[1].Number)
		assert.Equal(t, 0, chunks[1].Lines[0].LineOffsetInChunk)
		assert.Equal(t, 11, chunks[1].Lines[0].Line.Number)
	})

	t.Run("oversized line still gets a chunk of its own", func(t *testing.T) {
		big := strings.Repeat("y", 5*TargetBytes)
		chunks := Split([]Line{
			{Number: 1, Text: "small"},
			{Number: 2, Text: big},
			{Number: 3, Text: "after"},
		})
		require.Len(t, chunks, 3)
		assert.Equal(t, big, chunks[1].Text)
		require.Len(t, chunks[1].Lines, 1)
	})

	t.Run("chunk text is lines joined by newline and offsets index into the split", func(t *testing.T) {
		chunks := Split([]Line{
			{Number: 1, Text: "alpha"},
			{Number: 2, Text: "beta"},
			{Number: 3, Text: "gamma"},
		})
		require.Len(t, chunks, 1)
		split := strings.Split(chunks[0].Text, "\n")
		for _, p := range chunks[0].Lines {
			assert.Equal(t, p.Line.Text, split[p.LineOffsetInChunk])
		}
	})

	t.Run("sparse line numbers are preserved", func(t *testing.T) {
		chunks := Split([]Line{
			{Number: 0, Text: "docs/report.pdf"},
			{Number: 7, Text: "page two text"},
		})
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Lines[0].Line.Number)
		assert.Equal(t, 7, chunks[0].Lines[1].Line.Number)
	})
}
