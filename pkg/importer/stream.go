package importer

import (
	"context"

	"github.com/prodfactory/flowsync/pkg/events"
)

// streamBuffer absorbs short consumer stalls without blocking the import
// loop on every event.
const streamBuffer = 64

// ImportAllStream runs the two-phase bulk import and returns a channel of
// progress events. The channel carries exactly one terminal event
// (completed or failed) as its last element and is closed afterwards. The
// run outcome is delivered through the stream; consumers that need the
// aggregate counters use ImportAll instead.
func (o *Orchestrator) ImportAllStream(ctx context.Context, opts Options) <-chan events.ImportProgress {
	stream := make(chan events.ImportProgress, streamBuffer)

	go func() {
		defer close(stream)

		//nolint:errcheck // the error is mirrored into the terminal event
		o.run(ctx, opts, func(event events.ImportProgress) {
			select {
			case stream <- event:
			case <-ctx.Done():
			}
		})
	}()

	return stream
}
