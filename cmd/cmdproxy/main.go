// Command cmdproxy invokes methods declared in a manifest as external
// processes.
//
//	cmdproxy run git.log 5
//	cmdproxy methods git
//	cmdproxy version
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
