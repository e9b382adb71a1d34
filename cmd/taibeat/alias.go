package main

import (
	"fmt"
	"os"

	"github.com/reusee/e5"
)

var (
	pt   = fmt.Printf
	wrap = e5.Wrap.With(e5.WrapStacktrace)
)

func ce(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
