package main

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
)

var (
	needsArgRe     = regexp.MustCompile(`^flag needs an argument: (?:'\w' in )?(-{1,2}[\w-]+)`)
	unknownFlagRe  = regexp.MustCompile(`^unknown flag: (--[\w-]+)`)
	unknownShortRe = regexp.MustCompile(`^unknown shorthand flag: '.*' in (-\w)`)
	invalidArgRe   = regexp.MustCompile(`^invalid argument ".*" for "(.*)" flag: `)
)

// flagErrorKinds maps pflag error messages to a human readable reason. The
// first group of each expression is the offending flag.
var flagErrorKinds = []struct {
	re     *regexp.Regexp
	reason string
}{
	{needsArgRe, "Flag %s needs an argument."},
	{unknownFlagRe, "Flag %s is missing."},
	{unknownShortRe, "Short flag %s is missing."},
	{invalidArgRe, "Flag %s has an invalid argument."},
}

func newFlagParseError(err error) flagParseError {
	s := err.Error()
	for _, kind := range flagErrorKinds {
		if parts := kind.re.FindStringSubmatch(s); len(parts) > 1 {
			return flagParseError{err: err, reason: kind.reason, flag: parts[1]}
		}
	}
	return flagParseError{err: err, reason: strings.ReplaceAll(s, "%", "%%")}
}

// flagParseError is a cobra/pflag parsing error, rendered with the flag
// highlighted.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

func (f flagParseError) Error() string        { return f.err.Error() }
func (f flagParseError) Unwrap() error        { return f.err }
func (f flagParseError) ReasonFormat() string { return f.reason }
func (f flagParseError) Flag() string         { return f.flag }

var errNegativeDuration = errors.New("duration must not be negative")

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

// durationFlag accepts day units ("2d") on top of [time.ParseDuration].
type durationFlag time.Duration

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if v < 0 {
		return errNegativeDuration
	}
	*d = durationFlag(v)
	return nil
}

func (d *durationFlag) String() string { return time.Duration(*d).String() }

func (*durationFlag) Type() string { return "duration" }
