package logcontext

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendCtx(t *testing.T) {
	ctx := AppendCtx(context.Background(), slog.String("requestId", "abc"))
	ctx = AppendCtx(ctx, slog.String("reference", "donation-1-abcd1234"))

	attrs := Attrs(ctx)
	assert.Len(t, attrs, 2)
	assert.Equal(t, "requestId", attrs[0].Key)
	assert.Equal(t, "reference", attrs[1].Key)
}

func TestHandler_AddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&Handler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("requestId", "abc"))
	logger.InfoContext(ctx, "hello")

	assert.Contains(t, buf.String(), `"requestId":"abc"`)
}

func TestAttrs_Empty(t *testing.T) {
	assert.Nil(t, Attrs(context.Background()))
}
