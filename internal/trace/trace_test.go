package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	assert.True(t, strings.HasPrefix(a, "op_"))
	assert.Len(t, a, len("op_")+16)
	assert.NotEqual(t, a, b)
}

func TestWithID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ID(ctx))

	ctx = WithID(ctx, "msg-1")
	assert.Equal(t, "msg-1", ID(ctx))

	generated := WithID(context.Background(), "")
	assert.True(t, strings.HasPrefix(ID(generated), "op_"))
}

func TestSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Run("keeps an existing id", func(t *testing.T) {
		buf.Reset()
		ctx, span := Start(WithID(context.Background(), "msg-1"), logger, "copy", "key", "transactions")
		assert.Equal(t, "msg-1", ID(ctx))
		span.End(nil)

		out := buf.String()
		assert.Contains(t, out, "Operation started")
		assert.Contains(t, out, "Operation completed")
		assert.Contains(t, out, "trace_id=msg-1")
		assert.Contains(t, out, "operation=copy")
		assert.Contains(t, out, "key=transactions")
		assert.Contains(t, out, "success=true")
	})

	t.Run("failure logs at error", func(t *testing.T) {
		buf.Reset()
		ctx, span := Start(context.Background(), logger, "add")
		require.NotEmpty(t, ID(ctx))
		span.End(errors.New("disk full"))

		out := buf.String()
		assert.Contains(t, out, "level=ERROR")
		assert.Contains(t, out, "success=false")
		assert.Contains(t, out, "disk full")
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		_, span := Start(context.Background(), nil, "noop")
		require.NotNil(t, span.Logger())
		assert.GreaterOrEqual(t, int64(span.End(nil)), int64(0))
	})
}
