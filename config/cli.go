package config

import (
	"flag"
	"strings"
	"time"
)

// Cli holds every flag/env-derived setting for the archiver binary.
type Cli struct {
	HTTPAddress string

	DatabaseURL string

	WorkDir string

	IngestInterval time.Duration
	Channels       []string

	UploadCategory    string
	UploadPrivate     bool
	UploadMadeForKids bool
	UploadAccessToken string
}

// CommaSliceFlag registers a flag.Value that splits a comma-separated string
// into a []string, following the teacher's comma-list flag convention.
func CommaSliceFlag(fs *flag.FlagSet, dest *[]string, name string, defaultValue []string, usage string) {
	*dest = defaultValue
	fs.Var(&commaSliceValue{dest}, name, usage)
}

type commaSliceValue struct {
	dest *[]string
}

func (c *commaSliceValue) String() string {
	if c.dest == nil {
		return ""
	}
	return strings.Join(*c.dest, ",")
}

func (c *commaSliceValue) Set(v string) error {
	if v == "" {
		*c.dest = nil
		return nil
	}
	*c.dest = strings.Split(v, ",")
	return nil
}

// InvertedBoolFlag registers a single "-no-X" flag that sets dest to false
// when passed, mirroring the teacher's convention for flags that default to
// true.
func InvertedBoolFlag(fs *flag.FlagSet, dest *bool, name string, defaultValue bool, usage string) {
	*dest = defaultValue
	fs.Var(&invertedBool{dest}, "no-"+name, usage)
}

type invertedBool struct {
	dest *bool
}

func (i *invertedBool) String() string {
	if i.dest == nil {
		return "false"
	}
	return boolString(!*i.dest)
}

func (i *invertedBool) Set(v string) error {
	b := v == "true" || v == "1" || v == ""
	*i.dest = !b
	return nil
}

func (i *invertedBool) IsBoolFlag() bool { return true }

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
