// Package cmd wires the eld CLI surface the way the teacher's cmd/root.go
// wires cucaracha's: a root cobra.Command, an init() registering
// subcommands, and a cobra.OnInitialize hook that layers a YAML config and
// ELD_-prefixed environment variables on top of flags via viper.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eldlink/eld/pkg/link/config"
)

var cfgFile string

// RootCmd is the base command when eld is called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "eld",
	Short: "A linker-script-driven ELF static linker",
	Long: `eld links relocatable ELF objects, archives, and LLVM bitcode into an
executable or shared object, following a GNU-ld-compatible linker script
grammar for section placement and program header assignment.`,
}

// Execute adds every child command to RootCmd and runs it. Called once
// from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .eld.yaml in $HOME, then in the current directory)")
	RootCmd.AddCommand(linkCmd, mapCmd, scriptEvalCmd)
	cobra.OnInitialize(func() { config.InitEnv(cfgFile) })
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "eld: "+format+"\n", args...)
	os.Exit(1)
}
