// Package wordbank loads preset practice lists from a TOML file.
//
//	[[list]]
//	name  = "grade-5"
//	title = "Grade 5 Challenge"
//	words = ["atmosphere", "equation", "logic"]
package wordbank

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	"spellbee/internal/practice"
)

// List is a named preset.
type List struct {
	Name  string
	Title string
	Words practice.WordList
}

type fileList struct {
	Name  string   `toml:"name"`
	Title string   `toml:"title"`
	Words []string `toml:"words"`
}

type file struct {
	Lists []fileList `toml:"list"`
}

// Bank is an immutable set of presets, in file order.
type Bank struct {
	lists  []List
	byName map[string]List
}

// Empty returns a bank without presets.
func Empty() *Bank {
	return &Bank{byName: map[string]List{}}
}

// Load reads and parses the preset file at path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wordbank: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("wordbank: %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes preset TOML. Each entry's words go through the same parser
// as typed input, so "a, b" inside one array element yields two words.
func Parse(data []byte) (*Bank, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	b := Empty()
	for i, fl := range f.Lists {
		name := strings.TrimSpace(fl.Name)
		if name == "" {
			return nil, fmt.Errorf("list %d has no name", i+1)
		}
		if _, dup := b.byName[name]; dup {
			return nil, fmt.Errorf("duplicate list name %q", name)
		}
		words := practice.Parse(strings.Join(fl.Words, " "))
		if words.Len() == 0 {
			return nil, fmt.Errorf("list %q has no words", name)
		}
		title := strings.TrimSpace(fl.Title)
		if title == "" {
			title = name
		}
		l := List{Name: name, Title: title, Words: words}
		b.lists = append(b.lists, l)
		b.byName[name] = l
	}
	return b, nil
}

// Lists returns copies of the presets in file order.
func (b *Bank) Lists() []List {
	return lo.Map(b.lists, func(l List, _ int) List {
		l.Words = l.Words.Clone()
		return l
	})
}

// Get looks a preset up by name. The returned word list is a copy.
func (b *Bank) Get(name string) (List, bool) {
	l, ok := b.byName[strings.TrimSpace(name)]
	if !ok {
		return List{}, false
	}
	l.Words = l.Words.Clone()
	return l, true
}

// Len returns the number of presets.
func (b *Bank) Len() int { return len(b.lists) }
