// Command eld is the linker's CLI entry point, mirroring the teacher's
// thin main.go-calls-cmd.Execute() split (cmd/root.go's Execute function)
// instead of embedding cobra setup directly in main.
package main

import "github.com/eldlink/eld/cmd/eld/cmd"

func main() {
	cmd.Execute()
}
