// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	cmd "github.com/boltstep/boltstep/cmd/boltstep"
)

func main() {
	os.Exit(cmd.Execute())
}
