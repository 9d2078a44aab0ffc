package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fusiondex/internal/fusion"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseIDArgs accepts IDs as separate arguments or comma-separated lists.
func parseIDArgs(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(field), "#"))
			if field == "" {
				continue
			}
			id, err := strconv.Atoi(field)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid id %q: ids must be positive integers", field)
			}
			ids = append(ids, id)
		}
	}
	if len(fusion.UniqueIDs(ids)) < 2 {
		return nil, fmt.Errorf("at least two distinct ids are required")
	}
	return ids, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
