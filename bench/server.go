// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/go-lpc/tdc/chip"
)

// device is the view of a bench Device the control server drives.
type device interface {
	RunFixed(rounds, pulses int, cmd chip.Command) error
	RunScan(rounds, pulses int) error
	Stop()
	Status() Status
	Sets() []*SampleSet
	Label() string
	Close() error
}

// server allows to control a TDC test fixture over JSON requests.
type server struct {
	ctl net.Listener

	msg  *log.Logger
	port string

	newDevice func(port string, opts ...Option) (device, error)

	opts []Option
	dev  device

	acq struct {
		mode   string // "fixed", "scan" or "calib"
		rounds int
		pulses int
		phase  uint8
		csa    uint8
		reset  bool
		full   bool
		sel    string
	}

	running bool
	done    chan error
}

// Serve runs a fixture control server on addr, driving the fixture
// behind the named serial port.
func Serve(addr, port string, opts ...Option) error {
	srv, err := newServer(addr, port, opts...)
	if err != nil {
		return fmt.Errorf("bench: could not create tdc server: %w", err)
	}
	return srv.serve()
}

func newServer(addr, port string, opts ...Option) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bench: could not create tdc-ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,

		msg:  log.New(os.Stdout, "tdc-srv: ", 0),
		port: port,

		newDevice: func(port string, opts ...Option) (device, error) {
			return NewDevice(port, opts...)
		},

		opts: opts,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("bench: could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not run TDC fixture: %+v", err)
			continue
		}
	}
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	defer srv.teardown()

loop:
	for {
		var req struct {
			Name string           `json:"name"`
			Args *json.RawMessage `json:"args"`
		}

		err := json.NewDecoder(conn).Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, err)
			continue
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		switch strings.ToLower(req.Name) {
		case "configure":
			if req.Args == nil {
				err = fmt.Errorf("bench: missing %q payload", req.Name)
				srv.msg.Printf("%+v", err)
				srv.reply(conn, err)
				continue
			}
			var args struct {
				Mode   string `json:"mode"`
				Rounds int    `json:"rounds"`
				Pulses int    `json:"pulses"`
				Phase  uint8  `json:"phase"`
				CSA    uint8  `json:"csa"`
				Reset  bool   `json:"reset"`
				Full   bool   `json:"full"`
				Sel    string `json:"sel"`
			}
			err = json.Unmarshal(*req.Args, &args)
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v",
					req.Name, err,
				)
				srv.reply(conn, err)
				continue
			}

			err = srv.configure(args.Mode, args.Rounds, args.Pulses)
			if err != nil {
				srv.msg.Printf("could not configure acquisition: %+v", err)
				srv.reply(conn, err)
				continue
			}
			srv.acq.phase = args.Phase
			srv.acq.csa = args.CSA
			srv.acq.reset = args.Reset
			srv.acq.full = args.Full
			srv.acq.sel = args.Sel
			srv.reply(conn, nil)

		case "initialize":
			err = srv.initialize()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not initialize TDC device: %+v", err)
				continue
			}

		case "start":
			err = srv.start()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not start acquisition: %+v", err)
				continue
			}

		case "status":
			if srv.dev == nil {
				err = fmt.Errorf("bench: device not initialized")
				srv.reply(conn, err)
				continue
			}
			srv.replyStatus(conn, srv.dev.Status())

		case "summary":
			if srv.dev == nil {
				err = fmt.Errorf("bench: device not initialized")
				srv.reply(conn, err)
				continue
			}
			err = srv.join()
			if err != nil {
				srv.msg.Printf("could not join acquisition: %+v", err)
				srv.reply(conn, err)
				continue
			}
			srv.replySummary(conn, srv.dev.Sets())

		case "stop":
			if srv.dev != nil {
				srv.dev.Stop()
			}
			err = srv.join()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not stop acquisition: %+v", err)
				return fmt.Errorf("bench: could not stop acquisition: %w", err)
			}
			break loop

		default:
			srv.msg.Printf("unknown command name=%q, args=%q", req.Name, req.Args)
			err = fmt.Errorf("unknown command %q", req.Name)
			srv.reply(conn, err)
			continue
		}
	}

	return nil
}

func (srv *server) configure(mode string, rounds, pulses int) error {
	switch strings.ToLower(mode) {
	case "fixed", "scan", "calib":
		srv.acq.mode = strings.ToLower(mode)
	default:
		return fmt.Errorf("bench: unknown acquisition mode %q", mode)
	}
	if rounds <= 0 || pulses <= 0 {
		return fmt.Errorf("bench: invalid acquisition target (rounds=%d, pulses=%d)", rounds, pulses)
	}
	srv.acq.rounds = rounds
	srv.acq.pulses = pulses
	return nil
}

func (srv *server) initialize() error {
	if srv.running {
		return fmt.Errorf("bench: acquisition still running")
	}
	if srv.dev != nil {
		_ = srv.dev.Close()
		srv.dev = nil
	}

	opts := srv.opts
	if srv.acq.sel != "" {
		opts = append(opts[:len(opts):len(opts)], WithLabel(srv.acq.sel))
	}
	dev, err := srv.newDevice(srv.port, opts...)
	if err != nil {
		return fmt.Errorf("bench: could not create TDC device: %w", err)
	}
	srv.dev = dev
	return nil
}

func (srv *server) start() error {
	if srv.dev == nil {
		return fmt.Errorf("bench: device not initialized")
	}
	if srv.running {
		return fmt.Errorf("bench: acquisition still running")
	}
	if srv.acq.mode == "" {
		return fmt.Errorf("bench: acquisition not configured")
	}

	var run func() error
	switch srv.acq.mode {
	case "fixed":
		cmd := chip.Command{
			Type:    chip.CmdScan,
			Channel: chip.ChanBoth,
			Phase:   srv.acq.phase,
			Pixel: chip.PixelCtrl{
				Reset: srv.acq.reset,
				CSA:   srv.acq.csa,
			},
		}
		run = func() error { return srv.dev.RunFixed(srv.acq.rounds, srv.acq.pulses, cmd) }
	case "calib":
		cmd := chip.Command{
			Type:    chip.CmdCalib,
			Channel: chip.ChanBoth,
			Phase:   srv.acq.phase,
		}
		if srv.acq.full {
			cmd.ScanMode = chip.FullScan
		}
		run = func() error { return srv.dev.RunFixed(srv.acq.rounds, srv.acq.pulses, cmd) }
	case "scan":
		run = func() error { return srv.dev.RunScan(srv.acq.rounds, srv.acq.pulses) }
	}

	srv.done = make(chan error, 1)
	srv.running = true
	go func() { srv.done <- run() }()
	return nil
}

// join waits for the acquisition goroutine, once the session reached
// IDLE, and collects its error.
func (srv *server) join() error {
	if !srv.running {
		return nil
	}
	if srv.dev.Status().Mode != Idle {
		return fmt.Errorf("bench: acquisition still running")
	}
	err := <-srv.done
	srv.running = false
	return err
}

func (srv *server) teardown() {
	if srv.dev == nil {
		return
	}
	if srv.running {
		srv.dev.Stop()
		<-srv.done
		srv.running = false
	}
	_ = srv.dev.Close()
	srv.dev = nil
}

func (srv *server) reply(conn net.Conn, err error) {
	rep := struct {
		Msg string `json:"msg"`
	}{"ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) replyStatus(conn net.Conn, st Status) {
	rep := struct {
		Msg     string `json:"msg"`
		Mode    string `json:"mode"`
		Step    int    `json:"step"`
		Round   int    `json:"round"`
		Pending int    `json:"pending"`
		Words   uint64 `json:"words"`
		Pairs   uint64 `json:"pairs"`
		Orphans uint64 `json:"orphans"`
		Evicted uint64 `json:"evicted"`
		Echoes  uint64 `json:"echoes"`
		Infos   uint64 `json:"infos"`
	}{
		Msg:     "ok",
		Mode:    st.Mode.String(),
		Step:    st.Step,
		Round:   st.Round,
		Pending: st.Pending,
		Words:   st.Counters.Words,
		Pairs:   st.Counters.Pairs,
		Orphans: st.Counters.Orphans,
		Evicted: st.Counters.Evicted,
		Echoes:  st.Counters.Echoes,
		Infos:   st.Counters.Infos,
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) replySummary(conn net.Conn, sets []*SampleSet) {
	type setReply struct {
		Mode  string  `json:"mode"`
		Step  int     `json:"step"`
		Label string  `json:"label"`
		N     int     `json:"n"`
		Mean  float64 `json:"mean"`
		Var   float64 `json:"var"`
		Std   float64 `json:"std"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
	}
	rep := struct {
		Msg  string     `json:"msg"`
		Sel  string     `json:"sel"`
		Sets []setReply `json:"sets"`
	}{
		Msg: "ok",
		Sel: srv.dev.Label(),
	}
	for _, set := range sets {
		sr := setReply{
			Mode:  set.Mode.String(),
			Step:  set.Step,
			Label: set.Label,
			N:     len(set.Pairs),
		}
		if sum, ok := set.Summary(); ok {
			sr.Mean = sum.Mean
			sr.Var = sum.Variance
			sr.Std = sum.Std
			sr.Min = sum.Min
			sr.Max = sum.Max
		}
		rep.Sets = append(rep.Sets, sr)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
