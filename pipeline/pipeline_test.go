package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceProducer(n int) Producer {
	return ProducerFunc(func(ctx context.Context, emit func(*core.Record) error) error {
		for i := range n {
			if err := emit(core.NewRecord(fmt.Sprintf("doc %d", i))); err != nil {
				return err
			}
		}
		return nil
	})
}

func collect(out *[]*core.Record) Consumer {
	return ConsumerFunc(func(_ context.Context, rec *core.Record) error {
		*out = append(*out, rec)
		return nil
	})
}

// holdBack buffers everything until Flush.
type holdBack struct {
	buf []*core.Record
}

func (h *holdBack) Process(_ context.Context, rec *core.Record) ([]*core.Record, error) {
	h.buf = append(h.buf, rec)
	return nil, nil
}

func (h *holdBack) Flush(context.Context) ([]*core.Record, error) {
	out := h.buf
	h.buf = nil
	return out, nil
}

func TestRun_StagesInOrder(t *testing.T) {
	duplicate := ProcessorFunc(func(_ context.Context, rec *core.Record) ([]*core.Record, error) {
		return []*core.Record{rec, core.NewRecord(rec.Text() + "!")}, nil
	})
	upper := ProcessorFunc(func(_ context.Context, rec *core.Record) ([]*core.Record, error) {
		return []*core.Record{core.NewRecord(strings.ToUpper(rec.Text()))}, nil
	})

	var got []*core.Record
	require.NoError(t, Run(context.Background(), sliceProducer(2), collect(&got), duplicate, upper))
	assert.Equal(t, []string{"DOC 0", "DOC 0!", "DOC 1", "DOC 1!"}, chunkTexts(got))
}

func TestRun_FlushFeedsLaterStages(t *testing.T) {
	hold := &holdBack{}
	suffix := ProcessorFunc(func(_ context.Context, rec *core.Record) ([]*core.Record, error) {
		return []*core.Record{core.NewRecord(rec.Text() + "+")}, nil
	})

	var got []*core.Record
	require.NoError(t, Run(context.Background(), sliceProducer(3), collect(&got), hold, suffix))
	assert.Equal(t, []string{"doc 0+", "doc 1+", "doc 2+"}, chunkTexts(got))
}

func TestRun_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	failSecond := ProcessorFunc(func(_ context.Context, rec *core.Record) ([]*core.Record, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return []*core.Record{rec}, nil
	})

	var got []*core.Record
	err := Run(context.Background(), sliceProducer(5), collect(&got), failSecond)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, calls)
}

func TestRun_ConsumerError(t *testing.T) {
	boom := errors.New("disk full")
	consumer := ConsumerFunc(func(context.Context, *core.Record) error { return boom })
	err := Run(context.Background(), sliceProducer(1), consumer)
	assert.ErrorIs(t, err, boom)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got []*core.Record
	err := Run(ctx, sliceProducer(3), collect(&got))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
}

func TestStreamAdapters(t *testing.T) {
	input := `{"id": "a", "text_chunk": "hello 😀", "metadata": {"n": 1}, "embedding": null}

{"id": "b", "text_chunk": "bye", "metadata": null, "embedding": [0.5]}
`
	var out bytes.Buffer
	w := stream.NewWriter(&out)
	err := Run(context.Background(),
		NewStreamProducer(stream.NewReader(strings.NewReader(input))),
		NewStreamConsumer(w),
		EmojiCleaner{},
	)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		`{"id":"a","text_chunk":"hello ","metadata":{"n":1},"embedding":null}`,
		`{"id":"b","text_chunk":"bye","metadata":null,"embedding":[0.5]}`,
	}, lines)
}
