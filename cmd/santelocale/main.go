// Command santelocale is a private, encrypted glucose and activity log.
package main

import (
	"context"
	"os"

	"github.com/santelocale/healthlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
