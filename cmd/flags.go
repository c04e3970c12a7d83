// Package cmd provides the zaps3 command line.
// This file resolves option values across flags, environment and config file.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagLoader resolves a named option for a command. A flag given on the
// command line wins; otherwise a value viper finds in the environment or
// the config file; otherwise the flag's default. Flags the root command
// does not bind to viper resolve the same way, so subcommand flags can be
// set from the config file too.
type FlagLoader struct {
	flags *pflag.FlagSet
}

// NewFlagLoader creates a FlagLoader over cmd's local and inherited flags.
func NewFlagLoader(cmd *cobra.Command) *FlagLoader {
	return &FlagLoader{flags: cmd.Flags()}
}

func lookup[T any](f *FlagLoader, name string, fromFlag func(string) (T, error), fromViper func(string) T) T {
	if !f.flags.Changed(name) && viper.IsSet(name) {
		return fromViper(name)
	}
	v, _ := fromFlag(name)
	return v
}

func (f *FlagLoader) String(name string) string {
	return lookup(f, name, f.flags.GetString, viper.GetString)
}

func (f *FlagLoader) Int(name string) int {
	return lookup(f, name, f.flags.GetInt, viper.GetInt)
}

func (f *FlagLoader) Float64(name string) float64 {
	return lookup(f, name, f.flags.GetFloat64, viper.GetFloat64)
}

func (f *FlagLoader) Bool(name string) bool {
	return lookup(f, name, f.flags.GetBool, viper.GetBool)
}

func (f *FlagLoader) Duration(name string) time.Duration {
	return lookup(f, name, f.flags.GetDuration, viper.GetDuration)
}

// StringToString resolves a name=value map such as object metadata. From
// the config file it is read as a table.
func (f *FlagLoader) StringToString(name string) map[string]string {
	return lookup(f, name, f.flags.GetStringToString, viper.GetStringMapString)
}
