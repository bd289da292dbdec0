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

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/npy"
)

// csvFiles lists the *.csv files directly inside dir, sorted by name.
func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ConvertDir converts every CSV file in dir into sink using the worker
// pool. Sink calls are serialised. A failed file is reported and its
// siblings carry on. The error is only set when the directory cannot be
// listed or ctx is cancelled.
func (c *Converter) ConvertDir(ctx context.Context, dir string, sink flowpic.Sink) (DirReport, error) {
	rep := DirReport{Dir: dir}
	files, err := csvFiles(dir)
	if err != nil {
		return rep, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(files) == 0 {
		c.log.Warn("no .csv files found, skipping directory", zap.String("dir", dir))
		return rep, nil
	}

	rep.Files = make([]FileReport, len(files))
	jobs := make(chan int)
	safe := flowpic.Synchronized(sink)

	var wg sync.WaitGroup
	workers := min(c.workers, len(files))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rep.Files[idx] = c.ConvertFile(ctx, files[idx], safe)
			}
		}()
	}

dispatch:
	for idx := range files {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	for i := range rep.Files {
		if rep.Files[i].Path == "" {
			rep.Files[i] = FileReport{Path: files[i], Err: ctx.Err()}
		}
		rep.Tally.Merge(rep.Files[i].Tally)
	}
	return rep, ctx.Err()
}

// ClassTunnel splits a class directory path into its last two components.
func ClassTunnel(dir string) (class, tunnel string) {
	dir = filepath.Clean(dir)
	return filepath.Base(filepath.Dir(dir)), filepath.Base(dir)
}

// ExportDir converts dir and streams its FlowPics into
// <dir>/<class>_<tunnel>.npy. Nothing is written when the directory yields
// no FlowPics or when a write into the array fails.
func (c *Converter) ExportDir(ctx context.Context, dir string) (DirReport, error) {
	class, tunnel := ClassTunnel(dir)
	out := filepath.Join(dir, fmt.Sprintf("%s_%s.npy", class, tunnel))
	log := c.log.With(zap.String("class", class), zap.String("tunnel", tunnel))
	log.Info("aggregating class directory", zap.String("dir", dir))

	w := npy.NewStackWriter(out)
	var (
		first   *flowpic.FlowPic
		sinkErr error
	)
	sink := flowpic.SinkFunc(func(p *flowpic.FlowPic) error {
		if first == nil {
			first = p
		}
		if err := w.Add(p); err != nil {
			if sinkErr == nil {
				sinkErr = err
			}
			return err
		}
		return nil
	})

	rep, err := c.ConvertDir(ctx, dir, sink)
	rep.Class, rep.Tunnel = class, tunnel
	if err == nil && sinkErr != nil {
		err = fmt.Errorf("write %s: %w", out, sinkErr)
	}
	if err != nil {
		w.Abort()
		rep.Err = err
		return rep, err
	}
	if w.Len() == 0 {
		w.Abort()
		log.Warn("no valid FlowPics generated, skipping export", zap.Int("files", len(rep.Files)))
		return rep, nil
	}
	if err := w.Close(); err != nil {
		rep.Err = err
		return rep, err
	}
	rep.Output = out
	c.metrics.AddPictures(class, tunnel, w.Len())
	log.Info("exported class dataset",
		zap.String("path", out),
		zap.Int("flowpics", w.Len()),
		zap.Int("failed_files", rep.Failed()))

	if c.preview {
		png := strings.TrimSuffix(out, ".npy") + ".png"
		if err := flowpic.SavePreview(first, png, class+" / "+tunnel, c.previewSize); err != nil {
			log.Warn("preview not written", zap.Error(err))
		}
	}
	return rep, nil
}

// excluded reports whether the class/tunnel path matches an exclude token.
func (c *Converter) excluded(rel string) bool {
	rel = strings.ToLower(rel)
	for _, tok := range c.exclude {
		if tok != "" && strings.Contains(rel, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// classDirs finds the <root>/<class>/<tunnel> directories, sorted.
func classDirs(root string) ([]string, error) {
	classes, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, cl := range classes {
		if !cl.IsDir() {
			continue
		}
		tunnels, err := os.ReadDir(filepath.Join(root, cl.Name()))
		if err != nil {
			return nil, err
		}
		for _, tu := range tunnels {
			if tu.IsDir() {
				out = append(out, filepath.Join(root, cl.Name(), tu.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run exports every class directory under root. Directory failures are
// logged and recorded; only cancellation or an unreadable root stops the
// run.
func (c *Converter) Run(ctx context.Context, root string) (RunReport, error) {
	run := RunReport{Root: root}
	c.log.Info("starting iteration through all classes", zap.String("root", root))

	dirs, err := classDirs(root)
	if err != nil {
		return run, fmt.Errorf("scan %s: %w", root, err)
	}
	found := false
	for _, dir := range dirs {
		rel, _ := filepath.Rel(root, dir)
		if c.excluded(rel) {
			c.log.Info("excluded directory", zap.String("dir", dir))
			continue
		}
		found = true
		rep, err := c.ExportDir(ctx, dir)
		run.Dirs = append(run.Dirs, rep)
		run.Tally.Merge(rep.Tally)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, ctxErr
			}
			c.log.Error("class directory failed", zap.String("dir", dir), zap.Error(err))
		}
	}
	if !found {
		c.log.Warn("no class directories found, check the path and directory structure", zap.String("root", root))
	}
	c.log.Info("finished iterating through all classes",
		zap.Int("exported", len(run.Exported())),
		zap.Stringer("tally", run.Tally))
	return run, nil
}

// ErrNoFlowPics is returned by ConvertSingle when the file yields nothing.
var ErrNoFlowPics = errors.New("aggregate: no valid FlowPics")

// ConvertSingle converts one CSV file into <file>.npy beside it and returns
// the output path.
func (c *Converter) ConvertSingle(ctx context.Context, path string) (string, FileReport, error) {
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".npy"
	w := npy.NewStackWriter(out)
	rep := c.ConvertFile(ctx, path, w)
	if rep.Err != nil {
		w.Abort()
		return "", rep, rep.Err
	}
	if w.Len() == 0 {
		w.Abort()
		return "", rep, fmt.Errorf("%w in %s", ErrNoFlowPics, path)
	}
	if err := w.Close(); err != nil {
		return "", rep, err
	}
	c.log.Info("dataset saved", zap.String("path", out), zap.Int("flowpics", w.Len()))
	return out, rep, nil
}
