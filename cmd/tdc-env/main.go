// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-env logs the ambient temperature of the TDC test bench,
// read from the LM75-class I2C sensor mounted next to the fixture
// socket. The chip delay lines drift with temperature, so acquisition
// campaigns record the bench conditions alongside the delay data.
package main // import "github.com/go-lpc/tdc/cmd/tdc-env"

import (
	"encoding/csv"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-daq/smbus"
)

func main() {
	log.SetPrefix("tdc-env: ")
	log.SetFlags(0)

	var (
		bus  = flag.Int("bus", 1, "I2C bus the sensor sits on")
		addr = flag.Int("addr", 0x48, "I2C address of the sensor")
		reg  = flag.Int("reg", 0x00, "temperature register of the sensor")
		freq = flag.Duration("freq", 30*time.Second, "sampling period")
		out  = flag.String("o", "", "path to an optional CSV log file")
		nmax = flag.Int("n", 0, "stop after that many samples (0: sample until interrupted)")
	)

	flag.Parse()

	conn, err := smbus.Open(*bus, uint8(*addr))
	if err != nil {
		log.Fatalf("could not open I2C bus %d: %+v", *bus, err)
	}
	defer conn.Close()

	var csvw *csv.Writer
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("could not create CSV log file: %+v", err)
		}
		defer f.Close()
		csvw = csv.NewWriter(f)
		err = csvw.Write([]string{"Time", "Temp_C"})
		if err != nil {
			log.Fatalf("could not write CSV header: %+v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	tick := time.NewTicker(*freq)
	defer tick.Stop()

	n := 0
loop:
	for {
		v, err := conn.ReadWord(uint8(*addr), uint8(*reg))
		if err != nil {
			log.Fatalf("could not read temperature register: %+v", err)
		}
		temp := celsius(v)
		log.Printf("temp: %7.3f C", temp)

		if csvw != nil {
			err = csvw.Write([]string{
				time.Now().Format(time.RFC3339),
				strconv.FormatFloat(temp, 'f', 3, 64),
			})
			if err != nil {
				log.Fatalf("could not write CSV row: %+v", err)
			}
			csvw.Flush()
			if err := csvw.Error(); err != nil {
				log.Fatalf("could not flush CSV log file: %+v", err)
			}
		}

		n++
		if *nmax > 0 && n >= *nmax {
			break loop
		}

		select {
		case <-stop:
			break loop
		case <-tick.C:
		}
	}
}

// celsius converts a raw LM75 temperature word to degrees Celsius.
// SMBus word reads return the low byte first while the sensor streams
// its register MSB first, so the two bytes arrive swapped. The sensor
// resolves 11 bits at 0.125 C per count, left-justified in the word.
func celsius(v uint16) float64 {
	raw := v<<8 | v>>8
	return float64(int16(raw)>>5) * 0.125
}
