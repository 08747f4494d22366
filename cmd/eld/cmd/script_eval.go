package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/eldlink/eld/pkg/link/script"
	"github.com/eldlink/eld/pkg/utils"
)

var scriptEvalCmd = &cobra.Command{
	Use:   "script-eval",
	Short: "Interactively parse linker script fragments and print a structural summary",
	Run:   runScriptEval,
}

func runScriptEval(cmd *cobra.Command, args []string) {
	rl, err := readline.New("eld-script> ")
	if err != nil {
		fatalf("%v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatalf("%v", err)
		}
		if line == "" {
			continue
		}
		evalScriptLine(line)
	}
}

func evalScriptLine(src string) {
	p, err := script.NewParser(src)
	if err != nil {
		fmt.Printf("parse error: %v\n", err)
		return
	}
	s, err := p.Parse()
	if err != nil {
		fmt.Printf("parse error: %v\n", err)
		return
	}
	fmt.Printf("memory regions: %d, phdrs: %d, output sections: %d, top-level assigns: %d, assertions: %d, defsyms: %d\n",
		len(s.Memory), len(s.Phdrs), len(s.Sections), len(s.TopAssigns), len(s.Assertions), len(s.Defsyms))
	names := make([]string, len(s.Sections))
	for i, out := range s.Sections {
		names[i] = fmt.Sprintf("%s(%d)", out.Name, len(out.Rules))
	}
	fmt.Printf("  output sections: %s\n", utils.FormatSlice(names, ", "))
}
