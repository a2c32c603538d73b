package main

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance 提示候选命令的最大编辑距离
const maxSuggestionDistance = 3

// unknownSubcommandError 未知子命令，附带相近候选
func unknownSubcommandError(prefix, unknown string, valid []string) error {
	if best := findClosest(unknown, valid); best != "" {
		return fmt.Errorf("unknown %s subcommand: %s (did you mean %q?)", prefix, unknown, best)
	}
	return fmt.Errorf("unknown %s subcommand: %s", prefix, unknown)
}

// unknownCommandError 未知命令，附带相近候选
func unknownCommandError(unknown string, valid []string) error {
	if best := findClosest(unknown, valid); best != "" {
		return fmt.Errorf("unknown command: %s (did you mean %q?)", unknown, best)
	}
	return fmt.Errorf("unknown command: %s", unknown)
}

func findClosest(input string, candidates []string) string {
	var best string
	bestDist := maxSuggestionDistance + 1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(input, c); d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist <= maxSuggestionDistance {
		return best
	}
	return ""
}
