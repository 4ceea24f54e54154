// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-ports lists the serial ports of the host, with their
// USB identification when available, to help locate the port a TDC
// test fixture is connected to.
package main // import "github.com/go-lpc/tdc/cmd/tdc-ports"

import (
	"fmt"
	"log"

	"go.bug.st/serial/enumerator"
)

func main() {
	log.SetPrefix("tdc-ports: ")
	log.SetFlags(0)

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Fatalf("could not enumerate serial ports: %+v", err)
	}

	if len(ports) == 0 {
		fmt.Printf("no serial ports found\n")
		return
	}

	for _, port := range ports {
		fmt.Printf("%s", port.Name)
		if port.IsUSB {
			fmt.Printf(" [USB] vid:pid=%s:%s", port.VID, port.PID)
			if port.SerialNumber != "" {
				fmt.Printf(" serial=%s", port.SerialNumber)
			}
		}
		fmt.Printf("\n")
	}
}
