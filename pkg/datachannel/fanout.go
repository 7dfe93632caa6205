package datachannel

import (
	"context"
	"errors"
	"fmt"
)

// FanOut sends every message to each of its sinks in order. A failing
// sink does not stop the others; their errors are joined.
type FanOut []Sink

// Send implements Sink.
func (f FanOut) Send(ctx context.Context, data []byte) error {
	var errs []error
	for i, s := range f {
		if s == nil {
			continue
		}
		if err := sendOne(ctx, s, data); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func sendOne(ctx context.Context, s Sink, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return s.Send(ctx, data)
}
