package main

import "os"

var (
	Version   = "dev"
	Revision  = ""
	Branch    = ""
	BuildDate = ""
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
