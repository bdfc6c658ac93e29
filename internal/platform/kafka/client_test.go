package kafka

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"directory/internal/platform/config"
)

func TestNewDisabled(t *testing.T) {
	client, err := New(context.Background(), config.KafkaConfig{}, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := kgoLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	assert.Equal(t, kgo.LogLevelWarn, l.Level())
	l.Log(kgo.LogLevelError, "broker unreachable", "broker", "k1:9092")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "broker=k1:9092")
}
