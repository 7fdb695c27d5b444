package fileforge

import (
	"github.com/Skryldev/fileforge/core"
	"github.com/Skryldev/fileforge/pipeline"
)

// Inner exposes the underlying core.Processor for advanced use.  Prefer the
// high-level API for normal usage.
func (p *Processor) Inner() *core.Processor { return p.inner }

// Codecs exposes the codec registry, e.g. to install a codec after New.
func (p *Processor) Codecs() core.Registry { return p.codecs }

// Runner exposes the pipeline runner jobs are executed by.
func (p *Processor) Runner() *pipeline.Runner { return p.runner }
