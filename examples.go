package main

import (
	"maps"
	"math/rand/v2"
	"slices"
)

var examples = map[string]string{
	"Ask about the time, the model calls a function for it": `relay "what time is it in Tokyo right now?"`,
	"Review a diff in a fresh conversation":                  `git diff | relay -t review "review these changes"`,
	"Keep going from where you left off":                     `relay -C "now write the tests for it"`,
	"Let an MCP server do the legwork":                       `relay "list the open issues in charmbracelet/relay"`,
	"Get a few takes on the same question":                   `relay -n 3 --temp 1.2 "name my cat"`,
}

func randomExample() (string, string) {
	keys := slices.Sorted(maps.Keys(examples))
	desc := keys[rand.IntN(len(keys))] //nolint:gosec
	return desc, examples[desc]
}
