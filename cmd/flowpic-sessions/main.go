/*
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 *
 *
 */

// Command flowpic-sessions extracts session rows from pcap and pcapng
// captures, in the layout flowpic-convert reads.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/anon"
	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/flow"
	"github.com/glo-fi/flowpic/internal/cli"
	"github.com/glo-fi/flowpic/metrics"
	"github.com/glo-fi/flowpic/record"
)

type options struct {
	cli.Common
	output         string
	reportInterval int
	cryptoPan      bool
	keyFile        string
	direction      string
	idle           float64
}

func main() {
	ctx, stop := cli.Context()
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("flowpic-sessions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.Register(fs)
	fs.StringVar(&opts.output, "o", "-", "Session CSV output file (- for stdout)")
	fs.IntVar(&opts.reportInterval, "r", 0, "The interval at which to report progress and sweep idle sessions")
	fs.BoolVar(&opts.cryptoPan, "c", false, "Apply CryptoPan to IPs")
	fs.StringVar(&opts.keyFile, "k", "", "Provide key file for crypto-pan")
	fs.StringVar(&opts.direction, "direction", "", "Packets to keep: both, forward or backward")
	fs.Float64Var(&opts.idle, "idle", 0, "Seconds of silence that end a session")
	cli.Usage(fs, "<capture file>...")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		fmt.Fprintln(stderr, "\nMissing required filename.")
		return 2
	}

	cfg, log, err := opts.Setup(func(cfg *config.Config) error {
		if opts.reportInterval != 0 {
			cfg.Sessions.ReportInterval = opts.reportInterval
		}
		if opts.cryptoPan {
			cfg.Privacy.AnonymizeIPs = true
		}
		if opts.keyFile != "" {
			cfg.Privacy.KeyFile = opts.keyFile
		}
		if opts.direction != "" {
			cfg.Sessions.Direction = opts.direction
		}
		if opts.idle != 0 {
			cfg.Sessions.IdleTimeout = opts.idle
		}
		return nil
	})
	if err != nil {
		return cli.Fail(stderr, err)
	}
	defer log.Sync()
	cli.Welcome(log, "flowpic-sessions")

	var anonymizer flow.Anonymizer
	if cfg.Privacy.AnonymizeIPs {
		cpan, err := newCryptopan(cfg.Privacy.KeyFile)
		if err != nil {
			return cli.Fail(stderr, err)
		}
		anonymizer = cpan
	}

	m := metrics.New()
	ex, err := flow.NewExtractor(cfg, anonymizer, log, m)
	if err != nil {
		return cli.Fail(stderr, err)
	}

	out, closeOut, err := openOutput(opts.output, stdout)
	if err != nil {
		return cli.Fail(stderr, err)
	}
	bw := bufio.NewWriter(out)
	w := record.NewWriter(bw)

	for _, path := range fs.Args() {
		rep := ex.ExtractFile(ctx, path, w)
		if rep.Err != nil && ctx.Err() != nil {
			break
		}
	}
	err = w.Flush()
	if err == nil {
		err = bw.Flush()
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Error("cannot write sessions", zap.Error(err))
		return 1
	}
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Error("cannot write metrics", zap.Error(err))
	}

	log.Info("sessions written", zap.String("output", opts.output), zap.Int("rows", w.Rows()))
	if w.Rows() == 0 {
		log.Error("no sessions extracted")
		return 1
	}
	return 0
}

func newCryptopan(keyFile string) (*anon.Cryptopan, error) {
	var (
		key []byte
		err error
	)
	if keyFile != "" {
		key, err = anon.LoadKey(keyFile)
	} else {
		key, err = anon.RandomKey()
	}
	if err != nil {
		return nil, err
	}
	return anon.New(key)
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
