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

// Command flowpic-dataset combines per-class FlowPic arrays into labelled
// stratified test sets, one per tunnel type.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/dataset"
	"github.com/glo-fi/flowpic/internal/cli"
	"github.com/glo-fi/flowpic/metrics"
)

type options struct {
	cli.Common
	root     string
	out      string
	classes  string
	tunnels  string
	testSize float64
	seed     int64
	epsilon  float64
}

func main() {
	ctx, stop := cli.Context()
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("flowpic-dataset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.Register(fs)
	fs.StringVar(&opts.root, "root", "", "Directory holding the per-class arrays")
	fs.StringVar(&opts.out, "out", "", "Directory the test sets are written to")
	fs.StringVar(&opts.classes, "classes", "", "Comma separated class names, in label order")
	fs.StringVar(&opts.tunnels, "vpn-types", "", "Comma separated tunnel types")
	fs.Float64Var(&opts.testSize, "test-size", 0, "Fraction of each tunnel type held out as test set")
	fs.Int64Var(&opts.seed, "seed", -1, "Random state of the split (-1 keeps the configured one)")
	fs.Float64Var(&opts.epsilon, "epsilon", 0, "Privacy budget for noisy manifest statistics (0 disables)")
	cli.Usage(fs, "")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, log, err := opts.Setup(func(cfg *config.Config) error {
		if opts.root != "" {
			cfg.Dataset.Root = opts.root
		}
		if opts.out != "" {
			cfg.Dataset.Output = opts.out
		}
		if opts.classes != "" {
			cfg.Dataset.ClassNames = config.SplitList(opts.classes)
		}
		if opts.tunnels != "" {
			cfg.Dataset.VPNTypes = config.SplitList(opts.tunnels)
		}
		if opts.testSize != 0 {
			cfg.Dataset.TestSize = opts.testSize
		}
		if opts.seed >= 0 {
			cfg.Dataset.RandomState = opts.seed
		}
		if opts.epsilon != 0 {
			cfg.Privacy.Epsilon = opts.epsilon
		}
		return config.CheckOutputDir(cfg.Dataset.Output)
	})
	if err != nil {
		return cli.Fail(stderr, err)
	}
	defer log.Sync()
	cli.Welcome(log, "flowpic-dataset")

	m := metrics.New()
	report, err := dataset.New(cfg, log, m).Run(ctx)
	if err != nil {
		log.Error("assembly stopped", zap.Error(err))
	}
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Error("cannot write metrics", zap.Error(err))
	}
	if report.Empty() {
		log.Error("no test set written", zap.String("root", cfg.Dataset.Root))
		return 1
	}
	return 0
}
