// themesubst regenerates a theme file from a template and a variables file
// whenever either of them changes.
package main

import (
	"os"

	"github.com/hupe1980/themesubst/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
