package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eldlink/eld/pkg/link"
	"github.com/eldlink/eld/pkg/link/config"
	"github.com/eldlink/eld/pkg/link/mapfile"
)

var linkCmd = &cobra.Command{
	Use:   "link [objects...]",
	Short: "Link relocatable objects, archives, and bitcode into one output file",
	Args:  cobra.MinimumNArgs(1),
	Run:   runLink,
}

func init() {
	config.BindFlags(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) {
	cfg := config.Load(args)

	m, err := link.NewModule(cfg)
	if err != nil {
		fatalf("%v", err)
	}

	result, err := m.Link()
	if err != nil {
		fatalf("%v", err)
	}

	if err := writeOutput(m, result, cfg); err != nil {
		fatalf("%v", err)
	}

	if cfg.MapFile != "" {
		if err := writeMapFile(result, cfg); err != nil {
			fatalf("%v", err)
		}
	}
}

func writeOutput(m *link.Module, result *link.Result, cfg *config.LinkConfig) error {
	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	entry := entryValue(m, cfg.Entry)
	return m.Writer.Write(out, result.Layout, m.SectionMap, entry)
}

// entryValue resolves --entry to a numeric address: either a bare
// hex/decimal literal (the same grammar applyDefsyms accepts) or a symbol
// name the name pool already placed.
func entryValue(m *link.Module, entry string) uint64 {
	if v, err := parseLiteral(entry); err == nil {
		return v
	}
	if sym, ok := m.Names.FindSymbol(entry); ok {
		return sym.Value()
	}
	return 0
}

func parseLiteral(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}

func writeMapFile(result *link.Result, cfg *config.LinkConfig) error {
	f, err := os.Create(cfg.MapFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if cfg.MapFormat == "yaml" {
		return mapfile.WriteYAML(f, result.Map)
	}
	return mapfile.WriteText(f, result.Map)
}
