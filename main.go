// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/parastep/parastep/cmd/parastep"

func main() {
	cmd.Execute()
}
