package main

import (
	"github.com/shotpool/shotpool/tools/linters/timeutc"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(timeutc.Analyzer)
}
