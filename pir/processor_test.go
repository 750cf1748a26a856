package pir_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pir"
	"github.com/PinkeshGjr/PIRService/pirdb"
	"github.com/PinkeshGjr/PIRService/testutil"
)

func newTestStack(t *testing.T, numEntries int) (*he.Manager, *pirdb.Generation, *pir.Processor, *pir.Client) {
	t.Helper()
	manager, scheme := testutil.NewCompactScheme(t)
	gen := testutil.NewGeneration(t, scheme, 4, numEntries)
	processor := pir.NewProcessor(pir.ProcessorConfig{Manager: manager})
	client, err := pir.NewClient(scheme)
	require.NoError(t, err)
	return manager, gen, processor, client
}

func TestQueryRoundTrip(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 16)
	info := pir.InfoOf(gen)

	entries := testutil.Entries(16)

	// A value in the set decodes as present.
	query, err := client.BuildQuery(info, entries[3])
	require.NoError(t, err)

	resp, err := processor.Evaluate(context.Background(), gen, query)
	require.NoError(t, err)
	require.Equal(t, gen.ID, resp.GenerationID)

	present, err := client.Decode(info, entries[3], resp)
	require.NoError(t, err)
	assert.True(t, present)

	// A value outside the set decodes as absent.
	absentValue := "never-blocked.example"
	query, err = client.BuildQuery(info, absentValue)
	require.NoError(t, err)

	resp, err = processor.Evaluate(context.Background(), gen, query)
	require.NoError(t, err)

	present, err = client.Decode(info, absentValue, resp)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestResponseSizeIndependentOfTarget(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 16)
	info := pir.InfoOf(gen)

	values := append(testutil.Entries(4), "absent-a.example", "absent-b.example")
	sizes := make(map[int]bool)
	for _, value := range values {
		query, err := client.BuildQuery(info, value)
		require.NoError(t, err)
		resp, err := processor.Evaluate(context.Background(), gen, query)
		require.NoError(t, err)
		sizes[len(resp.Ciphertext)] = true
	}
	assert.Len(t, sizes, 1, "response size must not depend on the queried value")
}

func TestParamMismatchRejectedBeforeEvaluation(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 8)
	info := pir.InfoOf(gen)

	evaluated := false
	processor.SetEvaluateHook(func(string) { evaluated = true })

	query, err := client.BuildQuery(info, "example.com")
	require.NoError(t, err)
	query.ParamsID = "0000000000000000"

	_, err = processor.Evaluate(context.Background(), gen, query)
	code, ok := pir.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pir.CodeParamMismatch, code)
	assert.False(t, evaluated, "mismatched query must not reach evaluation")
}

func TestUnknownGenerationRejected(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 8)
	info := pir.InfoOf(gen)

	query, err := client.BuildQuery(info, "example.com")
	require.NoError(t, err)
	query.GenerationID = "stale"

	_, err = processor.Evaluate(context.Background(), gen, query)
	code, ok := pir.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pir.CodeProtocol, code)
}

func TestShardOutOfRangeRejected(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 8)
	info := pir.InfoOf(gen)

	query, err := client.BuildQuery(info, "example.com")
	require.NoError(t, err)
	query.Shard = gen.NumShards

	_, err = processor.Evaluate(context.Background(), gen, query)
	code, ok := pir.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pir.CodeProtocol, code)
}

func TestMalformedSelectorRejected(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 8)
	info := pir.InfoOf(gen)

	query, err := client.BuildQuery(info, "example.com")
	require.NoError(t, err)
	query.Selector = []byte("garbage")

	_, err = processor.Evaluate(context.Background(), gen, query)
	code, ok := pir.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pir.CodeProtocol, code)
}

func TestExpiredDeadline(t *testing.T) {
	_, gen, processor, client := newTestStack(t, 8)
	info := pir.InfoOf(gen)

	query, err := client.BuildQuery(info, "example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = processor.Evaluate(ctx, gen, query)
	code, ok := pir.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pir.CodeTimeout, code)
}

func TestPublishDuringFlight(t *testing.T) {
	manager, scheme := testutil.NewCompactScheme(t)
	genOld := testutil.NewGeneration(t, scheme, 2, 8)
	processor := pir.NewProcessor(pir.ProcessorConfig{Manager: manager})
	client, err := pir.NewClient(scheme)
	require.NoError(t, err)

	info := pir.InfoOf(genOld)
	query, err := client.BuildQuery(info, testutil.Entries(8)[0])
	require.NoError(t, err)

	// A query that started against the old generation completes against
	// it even after it is retired.
	genOld.Borrow()
	genOld.Retire()

	resp, err := processor.Evaluate(context.Background(), genOld, query)
	require.NoError(t, err)

	present, err := client.Decode(info, testutil.Entries(8)[0], resp)
	require.NoError(t, err)
	assert.True(t, present)

	genOld.Release()
}

func TestEvaluateTimeoutConfig(t *testing.T) {
	manager, scheme := testutil.NewCompactScheme(t)
	gen := testutil.NewGeneration(t, scheme, 2, 8)
	client, err := pir.NewClient(scheme)
	require.NoError(t, err)

	// A generous internal bound does not interfere with a normal query.
	processor := pir.NewProcessor(pir.ProcessorConfig{
		Manager:     manager,
		EvalTimeout: time.Minute,
	})

	query, err := client.BuildQuery(pir.InfoOf(gen), "example.com")
	require.NoError(t, err)
	_, err = processor.Evaluate(context.Background(), gen, query)
	assert.NoError(t, err)
}
