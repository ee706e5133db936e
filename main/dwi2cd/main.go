// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This runs the DesignWare i2c controller daemon stand alone.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinasystems/dwi2c/cmd/dwi2cd"
	"github.com/platinasystems/log"
)

func main() {
	c := new(dwi2cd.Command)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		c.Close()
	}()
	if err := c.Main(os.Args[1:]...); err != nil {
		log.Print("err", dwi2cd.Name, ": ", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
