package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "test"})
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := captureLogger(&buf).WithContext(context.Background())
	ctx = SetRunID(ctx, "run-1")
	ctx = WithFields(ctx, Fields{FieldSourceID: "src-1"})

	With(Fields{}).WithCount(3).Info(ctx, "fetched %d items", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run-1", line[FieldRunID])
	assert.Equal(t, "src-1", line[FieldSourceID])
	assert.Equal(t, float64(3), line[FieldCount])
	assert.Equal(t, "fetched 3 items", line["message"])
	assert.Equal(t, "test", line["service"])
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	ctx := captureLogger(&buf).WithContext(context.Background())

	Audit(ctx, "query_run.enqueued", Fields{FieldQueryID: "q-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, ComponentAudit, line[FieldComponent])
	assert.Equal(t, "query_run.enqueued", line[FieldAction])
	assert.Equal(t, "q-1", line[FieldQueryID])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}
