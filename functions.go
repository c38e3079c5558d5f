package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/relay/internal/function"
)

type currentTimeParams struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone name such as Europe/Paris. Defaults to the local time zone."`
}

// builtinFunctions are always offered to the model.
func builtinFunctions(now func() time.Time) []function.Spec {
	return []function.Spec{
		function.New(
			"current_time",
			"Returns the current date and time.",
			func(_ context.Context, p currentTimeParams) (string, error) {
				loc := time.Local
				if p.Timezone != "" {
					l, err := time.LoadLocation(p.Timezone)
					if err != nil {
						return "", fmt.Errorf("unknown time zone %q: %w", p.Timezone, err)
					}
					loc = l
				}
				return now().In(loc).Format(time.RFC1123Z), nil
			},
		),
	}
}
