package store

import (
	"context"
	"io"
	"sync"
)

// Upload is an in-flight blob upload started by StartUpload.
type Upload struct {
	progress chan int
	done     chan struct{}
	cancel   context.CancelFunc

	mu   sync.Mutex
	last int

	url string
	err error
}

// StartUpload streams r to blobs at path in the background. size is the
// expected byte count and may be zero when unknown, in which case only the
// final 100 is reported.
func StartUpload(ctx context.Context, blobs BlobStore, path string, r io.Reader, size int64, contentType string) *Upload {
	ctx, cancel := context.WithCancel(ctx)
	u := &Upload{
		progress: make(chan int, 101),
		done:     make(chan struct{}),
		cancel:   cancel,
		last:     -1,
	}
	go u.run(ctx, blobs, path, &progressReader{ctx: ctx, r: r, total: size, report: u.report}, contentType)
	return u
}

func (u *Upload) run(ctx context.Context, blobs BlobStore, path string, r io.Reader, contentType string) {
	defer u.cancel()
	u.report(0)
	url, err := blobs.UploadBlob(ctx, path, r, contentType)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		u.report(100)
	}
	u.url, u.err = url, err
	close(u.progress)
	close(u.done)
}

// report publishes pct if it is larger than anything sent so far. The
// channel holds 101 slots so a strictly increasing sequence never blocks.
func (u *Upload) report(pct int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if pct <= u.last {
		return
	}
	u.last = pct
	u.progress <- pct
}

// Progress yields increasing percentages and is closed when the upload ends.
func (u *Upload) Progress() <-chan int { return u.progress }

// Done is closed once the upload has finished or failed.
func (u *Upload) Done() <-chan struct{} { return u.done }

// Cancel aborts the upload. Wait then returns context.Canceled.
func (u *Upload) Cancel() { u.cancel() }

// Wait blocks until the upload ends and returns the blob URL.
func (u *Upload) Wait() (string, error) {
	<-u.done
	return u.url, u.err
}

type progressReader struct {
	ctx    context.Context
	r      io.Reader
	total  int64
	read   int64
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		p.report(pct)
	}
	return n, err
}
