package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/stream"
)

// Producer emits records until its source is exhausted.
type Producer interface {
	Produce(ctx context.Context, emit func(*core.Record) error) error
}

// Processor maps one record onto zero or more records.
type Processor interface {
	Process(ctx context.Context, rec *core.Record) ([]*core.Record, error)
}

// Consumer receives the records leaving the last stage.
type Consumer interface {
	Consume(ctx context.Context, rec *core.Record) error
}

// Flusher is implemented by processors that hold records back. Flush returns
// whatever is still buffered once the producer is done.
type Flusher interface {
	Flush(ctx context.Context) ([]*core.Record, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, emit func(*core.Record) error) error

func (f ProducerFunc) Produce(ctx context.Context, emit func(*core.Record) error) error {
	return f(ctx, emit)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, rec *core.Record) ([]*core.Record, error)

func (f ProcessorFunc) Process(ctx context.Context, rec *core.Record) ([]*core.Record, error) {
	return f(ctx, rec)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, rec *core.Record) error

func (f ConsumerFunc) Consume(ctx context.Context, rec *core.Record) error {
	return f(ctx, rec)
}

// Run pulls every record from producer through processors in order and hands
// the results to consumer. Everything runs on the calling goroutine. The
// first error from any stage stops the run and is returned.
func Run(ctx context.Context, producer Producer, consumer Consumer, processors ...Processor) error {
	var push func(stage int, recs []*core.Record) error
	push = func(stage int, recs []*core.Record) error {
		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if stage == len(processors) {
				if err := consumer.Consume(ctx, rec); err != nil {
					return err
				}
				continue
			}
			out, err := processors[stage].Process(ctx, rec)
			if err != nil {
				return fmt.Errorf("stage %d: %w", stage, err)
			}
			if err := push(stage+1, out); err != nil {
				return err
			}
		}
		return nil
	}

	err := producer.Produce(ctx, func(rec *core.Record) error {
		return push(0, []*core.Record{rec})
	})
	if err != nil {
		return err
	}

	for i, p := range processors {
		f, ok := p.(Flusher)
		if !ok {
			continue
		}
		out, err := f.Flush(ctx)
		if err != nil {
			return fmt.Errorf("stage %d: flush: %w", i, err)
		}
		if err := push(i+1, out); err != nil {
			return err
		}
	}
	return nil
}

// StreamProducer emits the records of a JSONL stream in Record shape.
type StreamProducer struct {
	r *stream.Reader
}

var _ Producer = (*StreamProducer)(nil)

// NewStreamProducer wraps r.
func NewStreamProducer(r *stream.Reader) *StreamProducer {
	return &StreamProducer{r: r}
}

func (p *StreamProducer) Produce(ctx context.Context, emit func(*core.Record) error) error {
	for {
		rec, err := p.r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

// StreamConsumer writes each record as one JSON line.
type StreamConsumer struct {
	w *stream.Writer
}

var _ Consumer = (*StreamConsumer)(nil)

// NewStreamConsumer wraps w. The caller flushes or closes w.
func NewStreamConsumer(w *stream.Writer) *StreamConsumer {
	return &StreamConsumer{w: w}
}

func (c *StreamConsumer) Consume(_ context.Context, rec *core.Record) error {
	return c.w.WriteRecord(rec)
}
