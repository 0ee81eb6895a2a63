// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"
)

// Sink is a stateful byte consumer the pipeline writes decoded plaintext
// into, in order, closing it exactly once at the end (spec §4.6).
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
}

// Progress reports one completed, in-order block (spec §12.2).
type Progress struct {
	Index      int
	CRC        uint32
	Compressed int // compressed bits consumed by this block
	Size       int // decompressed bytes produced by this block
	Duration   time.Duration
}

type pipelineOpts struct {
	workers    int
	progressCh chan<- Progress
	verbose    bool
}

// PipelineOption configures Run.
type PipelineOption func(*pipelineOpts)

// WithWorkers sets the worker pool size. The default is
// runtime.GOMAXPROCS(0)-1, matching the teacher's reservation of one
// core for the reassembly goroutine (spec §4.5).
func WithWorkers(n int) PipelineOption {
	return func(o *pipelineOpts) { o.workers = n }
}

// WithProgress registers a channel that receives one Progress value per
// block, in final output order. The pipeline never closes the channel;
// the caller may close it once Run has returned. The caller must keep
// draining it promptly or the pipeline stalls.
func WithProgress(ch chan<- Progress) PipelineOption {
	return func(o *pipelineOpts) { o.progressCh = ch }
}

// WithVerbose enables per-block trace logging.
func WithVerbose(v bool) PipelineOption {
	return func(o *pipelineOpts) { o.verbose = v }
}

type decodedResult struct {
	index int
	data  []byte
	crc   uint32
	desc  BlockDescriptor
	err   error
	dur   time.Duration
}

// Run decodes every block in descs against ci, in parallel, and writes
// the decompressed plaintext to sink strictly in original order (spec
// §4.5). It honors ctx: cancellation stops new dispatch promptly and
// in-flight workers drop their result instead of blocking.
func Run(ctx context.Context, ci *CompressedInput, descs []BlockDescriptor, sink Sink, opts ...PipelineOption) error {
	o := pipelineOpts{workers: runtime.GOMAXPROCS(0) - 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if len(descs) == 0 {
		return sink.Close()
	}
	if o.workers > len(descs) {
		o.workers = len(descs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workCh := make(chan BlockDescriptor)
	resultsCh := make(chan decodedResult, o.workers)
	sem := make(chan struct{}, 2*o.workers)

	var wg sync.WaitGroup
	wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go func() {
			defer wg.Done()
			for d := range workCh {
				ci.acquire()
				start := time.Now()
				data, crc, err := decodeBlock(ci, d)
				dur := time.Since(start)
				ci.Release()
				select {
				case resultsCh <- decodedResult{index: d.Index, data: data, crc: crc, desc: d, err: err, dur: dur}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, d := range descs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case workCh <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	p := &pipelineState{
		ci:       ci,
		sink:     sink,
		sem:      sem,
		total:    len(descs),
		pending:  make(map[int]decodedResult, 2*o.workers),
		opts:     o,
	}
	err := p.assemble(ctx, resultsCh)
	if err != nil {
		cancel()
		for range resultsCh {
		}
		return err
	}
	return nil
}

type pipelineState struct {
	ci            *CompressedInput
	sink          Sink
	sem           chan struct{}
	total         int
	pending       map[int]decodedResult
	expected      int
	allDispatched bool
	curCRC        uint32
	opts          pipelineOpts
}

func (p *pipelineState) assemble(ctx context.Context, resultsCh <-chan decodedResult) error {
	for {
		select {
		case res, ok := <-resultsCh:
			if !ok {
				p.allDispatched = true
				if err := p.flushReady(); err != nil {
					return err
				}
				if p.expected != p.total {
					return newErr(KindInternal, nil, "pipeline ended with %d of %d blocks flushed", p.expected, p.total)
				}
				return p.sink.Close()
			}
			p.pending[res.index] = res
			if err := p.flushReady(); err != nil {
				return err
			}
		case <-ctx.Done():
			for range resultsCh {
			}
			return ctx.Err()
		}
	}
}

// flushReady writes every block starting at p.expected that is ready to
// be written, in order, stopping when the next expected block hasn't
// arrived yet. A block that decoded with an error is given one chance
// at the false-positive merge recovery described in spec §12.1 before
// being treated as fatal.
func (p *pipelineState) flushReady() error {
	for {
		res, ok := p.pending[p.expected]
		if !ok {
			return nil
		}

		if res.err != nil {
			next, haveNext := p.pending[p.expected+1]
			if !haveNext {
				if p.allDispatched && p.expected+1 >= p.total {
					return res.err
				}
				return nil
			}
			merged := mergeDescriptors(res.desc, next.desc)
			data, crc, mergeErr := decodeBlock(p.ci, merged)
			if mergeErr != nil {
				return res.err
			}
			delete(p.pending, p.expected+1)
			<-p.sem
			res = decodedResult{index: res.index, data: data, crc: crc, desc: merged, dur: res.dur + next.dur}
			if p.opts.verbose {
				log.Printf("bz2zstd: recovered false-positive split at block %d by merging with %d", res.index, merged.Index+1)
			}
			// The merge consumed two descriptors (expected and
			// expected+1); the loop's trailing increment below only
			// accounts for one, so skip the second here.
			p.expected++
		}

		delete(p.pending, p.expected)
		<-p.sem
		if err := p.flush(res); err != nil {
			return err
		}
		p.expected++
	}
}

func (p *pipelineState) flush(res decodedResult) error {
	if _, err := p.sink.Write(res.data); err != nil {
		return newErr(KindIO, err, "write decoded block %d", res.index)
	}
	p.curCRC = updateStreamCRC(p.curCRC, res.crc)
	if res.desc.EOS {
		if p.curCRC != res.desc.StreamCRC {
			return newErr(KindCodec, nil, "stream CRC mismatch at block %d: got 0x%08x want 0x%08x", res.index, p.curCRC, res.desc.StreamCRC)
		}
		if p.opts.verbose {
			log.Printf("bz2zstd: stream CRC verified 0x%08x at block %d", p.curCRC, res.index)
		}
		p.curCRC = 0
	}
	if p.opts.progressCh != nil {
		p.opts.progressCh <- Progress{
			Index:      res.index,
			CRC:        res.crc,
			Compressed: res.desc.EndBit - res.desc.StartBit,
			Size:       len(res.data),
			Duration:   res.dur,
		}
	}
	if p.opts.verbose {
		log.Printf("bz2zstd: block %d: %d bits -> %d bytes in %v", res.index, res.desc.EndBit-res.desc.StartBit, len(res.data), res.dur)
	}
	return nil
}
