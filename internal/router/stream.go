package router

import (
	"context"

	"github.com/kari-ai/core/internal/domain"
)

// streamSingleChunk wraps a completed, non-streaming response as a
// single-chunk sequence, for providers or requests that don't advertise
// streaming (spec §4.7: "otherwise it returns a single-chunk sequence").
func streamSingleChunk(text string, err error) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk, 1)
	if err != nil {
		out <- domain.StreamChunk{Err: err, Done: true}
	} else {
		out <- domain.StreamChunk{Text: text, Done: true}
	}
	close(out)
	return out
}

// relayStream forwards a provider's stream, stopping promptly on ctx
// cancellation (spec §4.7: "cancellation must terminate the upstream call
// promptly").
func relayStream(ctx context.Context, upstream <-chan domain.StreamChunk) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				select {
				case out <- domain.StreamChunk{Err: ctx.Err(), Done: true}:
				default:
				}
				return
			case chunk, ok := <-upstream:
				if !ok {
					return
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
				if chunk.Done {
					return
				}
			}
		}
	}()
	return out
}
