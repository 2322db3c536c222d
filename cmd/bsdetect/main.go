// bsdetect scores text, documents and web pages for jargon and empty
// phrasing.
package main

import (
	"os"

	"github.com/japaniel/bsdetect/cmd/bsdetect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
