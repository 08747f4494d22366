package cmd

import (
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eldlink/eld/pkg/link/mapfile"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Inspect a link map file",
}

var mapBrowseCmd = &cobra.Command{
	Use:   "browse <map.yaml>",
	Short: "Browse a YAML link map in an interactive tree view",
	Args:  cobra.ExactArgs(1),
	Run:   runMapBrowse,
}

func init() {
	mapCmd.AddCommand(mapBrowseCmd)
}

func runMapBrowse(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatalf("%v", err)
	}

	var m mapfile.Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		fatalf("parsing map file: %v", err)
	}

	if err := browseMap(&m); err != nil {
		fatalf("%v", err)
	}
}

// browseMap renders the map's segments/sections/symbols as a tview tree,
// one root branch per category, expandable down to individual rows. This
// is purely a read/inspect view: it never writes the map file back.
func browseMap(m *mapfile.Map) error {
	root := tview.NewTreeNode("link map").SetColor(tcell.ColorYellow)
	tree := tview.NewTreeView().SetRoot(root).SetCurrentNode(root)

	segments := tview.NewTreeNode(fmt.Sprintf("segments (%d)", len(m.Segments)))
	for _, s := range m.Segments {
		label := fmt.Sprintf("%-10s vaddr=0x%x filesz=0x%x memsz=0x%x flags=%s", s.Type, s.VAddr, s.Filesz, s.Memsz, s.Flags)
		segments.AddChild(tview.NewTreeNode(label))
	}
	root.AddChild(segments)

	sections := tview.NewTreeNode(fmt.Sprintf("sections (%d)", len(m.Sections)))
	for _, s := range m.Sections {
		node := tview.NewTreeNode(fmt.Sprintf("%-20s vma=0x%x size=0x%x", s.Name, s.VMA, s.Size))
		for _, in := range s.Inputs {
			node.AddChild(tview.NewTreeNode(in))
		}
		sections.AddChild(node)
	}
	root.AddChild(sections)

	symbols := tview.NewTreeNode(fmt.Sprintf("symbols (%d)", len(m.Symbols)))
	for _, s := range m.Symbols {
		symbols.AddChild(tview.NewTreeNode(fmt.Sprintf("0x%016x %s", s.Value, s.Name)))
	}
	root.AddChild(symbols)

	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		node.SetExpanded(!node.IsExpanded())
	})

	app := tview.NewApplication()
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})
	return app.SetRoot(tree, true).Run()
}
