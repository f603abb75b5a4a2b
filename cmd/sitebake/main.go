// Sitebake is an incremental static-site preprocessor.
package main

import "github.com/albertocavalcante/sitebake/cmd/sitebake/internal/cli"

func main() {
	cli.Execute()
}
