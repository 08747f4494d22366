// Package config binds the linker's command-line surface (spec §6, SPEC_FULL
// §11/§12) to cobra flags and a viper-backed config/environment layer, the
// same split the teacher's cmd/root.go uses for its own flags (a cfgFile
// flag plus cobra.OnInitialize(initConfig) wiring viper to read a YAML
// config and ENV overrides before any subcommand runs).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// OrphanHandling mirrors --orphan-handling=<policy>.
type OrphanHandling string

const (
	OrphanPlace   OrphanHandling = "place"
	OrphanWarn    OrphanHandling = "warn"
	OrphanError   OrphanHandling = "error"
	OrphanDiscard OrphanHandling = "discard"
)

// UnresolvedSymbols mirrors --unresolved-symbols=<policy>.
type UnresolvedSymbols string

const (
	UnresolvedReportAll      UnresolvedSymbols = "report-all"
	UnresolvedIgnoreAll      UnresolvedSymbols = "ignore-all"
	UnresolvedIgnoreInObject UnresolvedSymbols = "ignore-in-object-files"
	UnresolvedIgnoreInShared UnresolvedSymbols = "ignore-in-shared-libs"
)

// LinkConfig is the fully-resolved set of options one `eld link` invocation
// runs with (SPEC_FULL §11/§12's ambient stack: target triple, endianness,
// RO segment, orphan handling, hash style, RELRO, unresolved-symbol
// policy, plus the basic input/output/search-path/script surface).
type LinkConfig struct {
	Target            string
	Endian            string
	Inputs            []string
	LibraryPaths      []string
	LibraryNames      []string
	ScriptPath        []string
	Output            string
	Entry             string
	Defsyms           []string
	RoSegment         bool
	OrphanHandling    OrphanHandling
	HashStyle         string
	Relro             bool
	UnresolvedSymbols UnresolvedSymbols
	ExportDynamic     []string
	Wrap              []string
	GCSections        bool
	LogFile           string
	MapFile           string
	MapFormat         string
	PIE               bool
	Verbose           bool
}

// BindFlags registers the link command's flags on cmd and binds each to a
// viper key of the same name, so CLI flags, a config file, and ELD_*
// environment variables all resolve through one precedence chain (cobra
// flag > env > config file > default), exactly as the teacher's initConfig
// layers a YAML config and ENV on top of cobra flags.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("target", "x86_64-unknown-linux-gnu", "target triple")
	flags.String("endian", "little", "byte order (little|big)")
	flags.StringArray("library-path", nil, "add dir to the library search path (-L)")
	flags.StringArray("library", nil, "link against lib<name> (-l)")
	flags.StringArray("script", nil, "linker script to apply (-T)")
	flags.StringP("output", "o", "a.out", "output file path")
	flags.String("entry", "_start", "entry point symbol")
	flags.StringArray("defsym", nil, "define a symbol as name=expression")
	flags.Bool("rosegment", true, "put read-only sections in their own PT_LOAD segment")
	flags.String("orphan-handling", string(OrphanPlace), "place|warn|error|discard")
	flags.String("hash-style", "gnu", "sysv|gnu|both")
	flags.Bool("relro", true, "enable PT_GNU_RELRO")
	flags.String("unresolved-symbols", string(UnresolvedReportAll), "report-all|ignore-all|ignore-in-object-files|ignore-in-shared-libs")
	flags.StringArray("export-dynamic-symbol", nil, "preserve symbol in .dynsym even if otherwise local")
	flags.StringArray("wrap", nil, "wrap symbol via __wrap_/__real_")
	flags.Bool("gc-sections", false, "accepted; no section garbage collection is performed")
	flags.String("log-file", "", "also write JSON diagnostics to this file")
	flags.String("map-file", "", "write a link map to this file")
	flags.String("map-format", "text", "text|yaml")
	flags.Bool("pie", false, "build a position-independent executable")
	flags.BoolP("verbose", "v", false, "verbose diagnostics")

	for _, name := range []string{
		"target", "endian", "library-path", "library", "script", "output", "entry", "defsym",
		"rosegment", "orphan-handling", "hash-style", "relro", "unresolved-symbols",
		"export-dynamic-symbol", "wrap", "gc-sections", "log-file", "map-file", "map-format",
		"pie", "verbose",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("config: binding flag %q: %v", name, err))
		}
	}
}

// InitEnv mirrors the teacher's initConfig: an optional YAML config file
// plus ELD_-prefixed environment variable overrides, applied before flags
// are read back out via Load.
func InitEnv(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".eld")
		viper.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "eld: using config file:", viper.ConfigFileUsed())
	}
}

// Load resolves a LinkConfig from whatever BindFlags/InitEnv already
// primed into viper, plus the positional input file arguments cobra
// handed the command.
func Load(inputs []string) *LinkConfig {
	return &LinkConfig{
		Target:            viper.GetString("target"),
		Endian:            viper.GetString("endian"),
		Inputs:            inputs,
		LibraryPaths:      viper.GetStringSlice("library-path"),
		LibraryNames:      viper.GetStringSlice("library"),
		ScriptPath:        viper.GetStringSlice("script"),
		Output:            viper.GetString("output"),
		Entry:             viper.GetString("entry"),
		Defsyms:           viper.GetStringSlice("defsym"),
		RoSegment:         viper.GetBool("rosegment"),
		OrphanHandling:    OrphanHandling(viper.GetString("orphan-handling")),
		HashStyle:         viper.GetString("hash-style"),
		Relro:             viper.GetBool("relro"),
		UnresolvedSymbols: UnresolvedSymbols(viper.GetString("unresolved-symbols")),
		ExportDynamic:     viper.GetStringSlice("export-dynamic-symbol"),
		Wrap:              viper.GetStringSlice("wrap"),
		GCSections:        viper.GetBool("gc-sections"),
		LogFile:           viper.GetString("log-file"),
		MapFile:           viper.GetString("map-file"),
		MapFormat:         viper.GetString("map-format"),
		PIE:               viper.GetBool("pie"),
		Verbose:           viper.GetBool("verbose"),
	}
}

// Validate rejects option combinations the layout/relocation engines
// cannot act on.
func (c *LinkConfig) Validate() error {
	switch c.OrphanHandling {
	case OrphanPlace, OrphanWarn, OrphanError, OrphanDiscard:
	default:
		return fmt.Errorf("config: unknown --orphan-handling %q", c.OrphanHandling)
	}
	switch c.UnresolvedSymbols {
	case UnresolvedReportAll, UnresolvedIgnoreAll, UnresolvedIgnoreInObject, UnresolvedIgnoreInShared:
	default:
		return fmt.Errorf("config: unknown --unresolved-symbols %q", c.UnresolvedSymbols)
	}
	if c.Endian != "little" && c.Endian != "big" {
		return fmt.Errorf("config: unknown --endian %q", c.Endian)
	}
	if len(c.Inputs) == 0 {
		return fmt.Errorf("config: no input files")
	}
	return nil
}
