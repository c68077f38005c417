package main

import (
	"math/rand"
	"time"

	"github.com/luma/sprt/cmd"
)

func main() {
	// N4M message ids are random
	rand.Seed(time.Now().UnixNano())

	cmd.Execute()
}
