package audio

import (
	"context"
	"errors"
	"io"
)

// Stream reads chunks on a separate goroutine and hands them over a channel
// holding at most depth chunks. The chunk channel is closed at end of input,
// on error or when the context is done. A read error other than io.EOF is
// delivered on the error channel, which is closed afterwards.
func Stream(ctx context.Context, src ChunkReader, depth int) (<-chan []int16, <-chan error) {
	var (
		chunks = make(chan []int16, max(depth, 0))
		errs   = make(chan error, 1)
	)

	go func() {
		defer close(errs)
		defer close(chunks)

		for {
			chunk, err := src.ReadChunk()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errs <- err
				}

				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, errs
}
