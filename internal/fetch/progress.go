// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// barProgress renders transfer progress as a terminal bar. The bar is
// created on Start so it knows the total and the resume offset.
type barProgress struct {
	out  io.Writer
	desc string
	bar  *progressbar.ProgressBar
}

func newBarProgress(out io.Writer, desc string) *barProgress {
	return &barProgress{out: out, desc: desc}
}

func (p *barProgress) Start(total, offset int64) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	if offset > 0 {
		p.bar.Set64(offset)
	}
}

func (p *barProgress) Write(b []byte) (int, error) {
	if p.bar == nil {
		return len(b), nil
	}
	return p.bar.Write(b)
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
