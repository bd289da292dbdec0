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

// Command flowpic-convert turns session CSV files into per-class FlowPic
// arrays.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/aggregate"
	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/dataset"
	"github.com/glo-fi/flowpic/internal/cli"
	"github.com/glo-fi/flowpic/metrics"
)

type options struct {
	cli.Common
	root    string
	input   string
	exclude string
	sample  int
	workers int
	preview bool
}

func main() {
	ctx, stop := cli.Context()
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("flowpic-convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.Register(fs)
	fs.StringVar(&opts.root, "root", "", "Directory holding <class>/<tunnel>/*.csv")
	fs.StringVar(&opts.input, "input", "", "Convert a single CSV file instead of the whole tree")
	fs.StringVar(&opts.exclude, "exclude", "", "Comma separated class directories to skip")
	fs.IntVar(&opts.sample, "sample", 0, "Also write a copy of each array reduced to this many FlowPics")
	fs.IntVar(&opts.workers, "workers", 0, "Files converted in parallel per directory (0 means one per CPU)")
	fs.BoolVar(&opts.preview, "preview", false, "Write a PNG heat map of the first FlowPic of each array")
	cli.Usage(fs, "")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, log, err := opts.Setup(func(cfg *config.Config) error {
		if opts.root != "" {
			cfg.Convert.Root = opts.root
		}
		if opts.exclude != "" {
			cfg.Convert.Exclude = config.SplitList(opts.exclude)
		}
		if opts.workers != 0 {
			cfg.Convert.Workers = opts.workers
		}
		if opts.preview {
			cfg.Histogram.Preview = true
		}
		return nil
	})
	if err != nil {
		return cli.Fail(stderr, err)
	}
	defer log.Sync()
	cli.Welcome(log, "flowpic-convert")

	m := metrics.New()
	conv, err := aggregate.New(cfg, nil, log, m)
	if err != nil {
		return cli.Fail(stderr, err)
	}

	var outputs []string
	if opts.input != "" {
		out, _, err := conv.ConvertSingle(ctx, opts.input)
		if err != nil {
			log.Error("conversion failed", zap.String("file", opts.input), zap.Error(err))
			return 1
		}
		outputs = []string{out}
	} else {
		report, err := conv.Run(ctx, cfg.Convert.Root)
		if err != nil {
			log.Error("conversion stopped", zap.Error(err))
		}
		outputs = report.Exported()
		if report.Empty() {
			log.Error("no arrays exported", zap.String("root", cfg.Convert.Root))
			writeMetrics(log, m, cfg.Metrics.Textfile)
			return 1
		}
	}

	if opts.sample > 0 {
		for _, path := range outputs {
			out, err := dataset.Sample(path, opts.sample, cfg.Dataset.RandomState)
			if err != nil {
				log.Warn("sampling skipped", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("sample saved", zap.String("path", out), zap.Int("flowpics", opts.sample))
		}
	}
	writeMetrics(log, m, cfg.Metrics.Textfile)
	return 0
}

func writeMetrics(log *zap.Logger, m *metrics.Metrics, path string) {
	if err := m.WriteTextfile(path); err != nil {
		log.Error("cannot write metrics", zap.Error(err))
	}
}
