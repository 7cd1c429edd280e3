package wordbank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spellbee/internal/practice"
)

const sample = `
[[list]]
name = "grade-5"
title = "Grade 5 Challenge"
words = ["atmosphere", "equation", "logic"]

[[list]]
name = "animals"
words = ["cat, dog", "giraffe"]
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 2, b.Len())
	lists := b.Lists()
	require.Len(t, lists, 2)
	assert.Equal(t, "grade-5", lists[0].Name)
	assert.Equal(t, "animals", lists[1].Name)

	l, ok := b.Get("grade-5")
	require.True(t, ok)
	assert.Equal(t, "Grade 5 Challenge", l.Title)
	assert.Equal(t, practice.WordList{"atmosphere", "equation", "logic"}, l.Words)

	l, ok = b.Get("animals")
	require.True(t, ok)
	assert.Equal(t, "animals", l.Title)
	assert.Equal(t, practice.WordList{"cat", "dog", "giraffe"}, l.Words)

	_, ok = b.Get("missing")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	l, _ := b.Get("grade-5")
	l.Words[0] = "changed"

	again, _ := b.Get("grade-5")
	assert.Equal(t, "atmosphere", again.Words[0])
}

func TestParseRejectsBadLists(t *testing.T) {
	tests := map[string]string{
		"no name":   "[[list]]\nwords = [\"a\"]\n",
		"no words":  "[[list]]\nname = \"x\"\nwords = [\" , \"]\n",
		"duplicate": "[[list]]\nname = \"x\"\nwords = [\"a\"]\n[[list]]\nname = \"x\"\nwords = [\"b\"]\n",
		"bad toml":  "[[list]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wordlists.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmpty(t *testing.T) {
	b := Empty()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Lists())
}
