package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "footprint"}

	root.AddCommand(runCMD(), serveCMD(), migrateCMD(), searchCMD())
	_ = root.Execute()
}
