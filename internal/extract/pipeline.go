// Package extract drives the container walker and writes the object graph
// into a fresh database.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zheng/assetgraph/internal/container"
	"github.com/zheng/assetgraph/internal/graph"
	"github.com/zheng/assetgraph/internal/integrity"
	"github.com/zheng/assetgraph/internal/storage"
)

// ErrNoContainers is returned when not a single file could be extracted.
var ErrNoContainers = errors.New("no container files were extracted")

const (
	// producerChunk caps the rows the sequencer accumulates before handing them to the committer.
	producerChunk = 1000
	// streamBuffer is how many units a reader may decode ahead of the sequencer.
	streamBuffer = 4
)

// Options configures an extraction run.
type Options struct {
	Root    string
	Output  string
	Pattern string

	// SkipIntegrityAndReferences disables both the per-file checksum and
	// reference extraction. The database then holds objects but no edges.
	SkipIntegrityAndReferences bool

	Workers   int
	BatchSize int
	Opener    container.Opener
	Logger    *slog.Logger
}

// FileError records a file that was skipped.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Result summarises a run.
type Result struct {
	Output     string        `json:"output"`
	Matched    int           `json:"matched"`
	Succeeded  int           `json:"succeeded"`
	Failed     []FileError   `json:"failed,omitempty"`
	Files      int64         `json:"files"`
	Objects    int64         `json:"objects"`
	References int64         `json:"references"`
	Commits    int64         `json:"commits"`
	Duration   time.Duration `json:"duration"`
}

// Run extracts every container under opts.Root matching opts.Pattern into
// opts.Output, replacing any database already there. Unreadable or
// unrecognised files are logged and skipped. Batches committed before a fatal
// error stay on disk.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	start := time.Now()
	opts = withDefaults(opts)
	log := opts.Logger

	files, err := container.Match(opts.Root, opts.Pattern, log)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", opts.Root, err)
	}
	log.Info("enumerated containers",
		slog.String("root", opts.Root),
		slog.String("pattern", opts.Pattern),
		slog.Int("files", len(files)))

	db, err := storage.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", opts.Output, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	}()

	writer, err := db.NewWriter(opts.BatchSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make(chan *storage.Batch, opts.Workers*2)
	commitDone := make(chan error, 1)
	go func() {
		commitDone <- commit(ctx, writer, batches, cancel, log)
	}()

	p := &pipeline{
		opts:    opts,
		ids:     graph.NewIDProvider(),
		batches: batches,
		log:     log,
	}
	res = &Result{Output: opts.Output, Matched: len(files)}

	// Files are read in parallel but handed to the sequencer in sorted order,
	// so ids depend only on the input and not on scheduling.
	streams := make(chan *fileStream, len(files))
	seqDone := make(chan error, 1)
	go func() {
		err := p.sequence(ctx, streams, res)
		if err != nil {
			cancel()
		}
		seqDone <- err
	}()

	var readers errgroup.Group
	readers.SetLimit(opts.Workers)
	for _, path := range files {
		s := &fileStream{path: path, events: make(chan fileEvent, streamBuffer)}
		streams <- s
		readers.Go(func() error {
			p.readFile(ctx, s)
			return nil
		})
	}
	close(streams)
	_ = readers.Wait()
	produceErr := <-seqDone
	close(batches)

	if cerr := <-commitDone; cerr != nil {
		return res, fmt.Errorf("failed to write database: %w", cerr)
	}
	if produceErr != nil {
		return res, produceErr
	}

	if err := db.Analyze(); err != nil {
		log.Warn("failed to analyze database", slog.String("error", err.Error()))
	}

	stats := writer.Stats()
	res.Files = stats.Files
	res.Objects = stats.Objects
	res.References = stats.Refs
	res.Commits = stats.Commits
	res.Duration = time.Since(start)

	log.Info("extraction finished",
		slog.String("output", opts.Output),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", len(res.Failed)),
		slog.Int64("objects", res.Objects),
		slog.Int64("references", res.References),
		slog.Duration("duration", res.Duration))

	if res.Succeeded == 0 {
		return res, ErrNoContainers
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = storage.DefaultBatchSize
	}
	if opts.Opener == nil {
		opts.Opener = container.DumpOpener{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

// commit is the only goroutine that touches the writer. After a failure it
// keeps draining so producers never block, and cancels the run.
func commit(ctx context.Context, w *storage.Writer, batches <-chan *storage.Batch, cancel context.CancelFunc, log *slog.Logger) error {
	var err error
	for b := range batches {
		if err != nil {
			continue
		}
		if err = w.Add(ctx, b); err != nil {
			cancel()
			continue
		}
		log.Debug("queued batch", slog.Int("rows", b.Len()))
	}
	if err != nil {
		return err
	}
	return w.Close(ctx)
}

type pipeline struct {
	opts    Options
	ids     *graph.IDProvider
	batches chan<- *storage.Batch
	log     *slog.Logger
}

func (p *pipeline) send(ctx context.Context, b *storage.Batch) error {
	select {
	case p.batches <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fileStream carries the decoded content of one container from its reader
// to the sequencer.
type fileStream struct {
	path   string
	events chan fileEvent
}

// fileEvent is one step of a stream: the header of an opened file, a unit, or
// the error that ended the file. A stream that closes without an error
// finished cleanly.
type fileEvent struct {
	header *fileHeader
	unit   *container.Unit
	err    error
}

type fileHeader struct {
	size int64
	crc  *uint32
}

// readFile opens, checksums and decodes one container. It touches no ids.
func (p *pipeline) readFile(ctx context.Context, s *fileStream) {
	defer close(s.events)
	if ctx.Err() != nil {
		return
	}

	emit := func(ev fileEvent) error {
		select {
		case s.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fail := func(err error) {
		_ = emit(fileEvent{err: err})
	}

	info, err := os.Stat(s.path)
	if err != nil {
		fail(err)
		return
	}

	var crc *uint32
	if !p.opts.SkipIntegrityAndReferences {
		sum, err := integrity.FileCRC32(s.path)
		if err != nil {
			fail(err)
			return
		}
		crc = &sum
	}

	c, err := p.opts.Opener.Open(s.path)
	if err != nil {
		fail(err)
		return
	}
	defer c.Close()

	if err := emit(fileEvent{header: &fileHeader{size: info.Size(), crc: crc}}); err != nil {
		return
	}
	if err := c.Walk(func(u *container.Unit) error {
		return emit(fileEvent{unit: u})
	}); err != nil && ctx.Err() == nil {
		fail(err)
	}
}

// sequence consumes the streams in order and is the only caller of the id
// provider. A failed file is recorded and skipped; only a cancelled run is fatal.
func (p *pipeline) sequence(ctx context.Context, streams <-chan *fileStream, res *Result) error {
	for s := range streams {
		ferr := p.buildFile(ctx, s)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ferr == nil {
			res.Succeeded++
			continue
		}
		p.log.Warn("skipping file",
			slog.String("path", s.path),
			slog.String("error", ferr.Error()))
		res.Failed = append(res.Failed, FileError{Path: s.path, Err: ferr.Error()})
	}
	return nil
}

// buildFile turns one stream into rows. Rows sent before an error stay sent.
func (p *pipeline) buildFile(ctx context.Context, s *fileStream) error {
	// the reader must never be left blocked on a send
	defer func() {
		for range s.events {
		}
	}()

	var first fileEvent
	select {
	case ev, ok := <-s.events:
		if !ok {
			return ctx.Err()
		}
		first = ev
	case <-ctx.Done():
		return ctx.Err()
	}
	if first.err != nil {
		return first.err
	}

	rel := relPath(p.opts.Root, s.path)
	containerID := p.ids.FileID()
	batch := &storage.Batch{
		Files: []*graph.File{{
			ID:    containerID,
			Path:  rel,
			Kind:  graph.FileKindContainer,
			Size:  first.header.size,
			CRC32: first.header.crc,
		}},
	}

	flushIfFull := func() error {
		if batch.Len() < producerChunk {
			return nil
		}
		full := batch
		batch = &storage.Batch{}
		return p.send(ctx, full)
	}

	builder := graph.NewBuilder(
		p.ids,
		!p.opts.SkipIntegrityAndReferences,
		func(o *graph.Object) error {
			batch.Objects = append(batch.Objects, o)
			return flushIfFull()
		},
		func(r *graph.Reference) error {
			batch.Refs = append(batch.Refs, r)
			return flushIfFull()
		},
	)

	var fileErr error
	for fileErr == nil {
		var ev fileEvent
		var ok bool
		select {
		case ev, ok = <-s.events:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			break
		}
		if ev.err != nil {
			fileErr = ev.err
			break
		}
		u := ev.unit
		unitID := p.ids.FileID()
		batch.Files = append(batch.Files, &graph.File{
			ID:       unitID,
			Path:     rel + "/" + u.Name,
			Kind:     graph.FileKindSerializedFile,
			ParentID: containerID,
			Size:     u.Size,
		})
		fileErr = builder.BuildUnit(unitID, u)
	}

	if batch.Len() > 0 {
		if err := p.send(ctx, batch); err != nil {
			return err
		}
	}
	if fileErr != nil {
		return fileErr
	}

	stats := builder.Stats()
	p.log.Debug("extracted container",
		slog.String("path", rel),
		slog.Int("objects", stats.Objects),
		slog.Int("references", stats.References),
		slog.Int("duplicates", stats.Duplicates))
	return nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
