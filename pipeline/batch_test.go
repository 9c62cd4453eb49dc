package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

func TestReadAnchorRecordsBatch(t *testing.T) {
	chain := newFakeChain()
	svc, _ := newTestService(t, chain)
	defer svc.Close()

	expected := map[uint64]canonical.Commitment{}
	for i := uint64(1); i <= 5; i++ {
		result, err := svc.AnchorState(context.Background(), i, "agent", canonical.Document{"n": int64(i)})
		require.NoError(t, err)
		expected[i] = result.Commitment
	}

	pipe := NewSubmissionPipeline(chain, 0, nil)

	var mu sync.Mutex
	var progress []BatchProgress
	records := pipe.ReadAnchorRecords(context.Background(), registryContract,
		[]uint64{1, 2, 3, 4, 5},
		&BatchConfig{Concurrency: 3, OnProgress: func(p BatchProgress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}})

	require.Len(t, records, 5)
	for i, r := range records {
		require.NoError(t, r.Err)
		assert.Equal(t, uint64(i+1), r.TokenID, "results keep input order")
		assert.Equal(t, expected[r.TokenID], r.Record.Commitment)
	}

	require.Len(t, progress, 5)
	last := progress[len(progress)-1]
	assert.Equal(t, 5, last.Completed)
	assert.Equal(t, 5, last.Success)
	assert.Equal(t, 0, last.Failed)
}

func TestVerifyMany(t *testing.T) {
	chain := newFakeChain()
	svc, _ := newTestService(t, chain)
	defer svc.Close()

	r1, err := svc.AnchorState(context.Background(), 1, "agent", canonical.Document{"n": int64(1)})
	require.NoError(t, err)
	r2, err := svc.AnchorState(context.Background(), 2, "agent", canonical.Document{"n": int64(2)})
	require.NoError(t, err)

	pipe := NewSubmissionPipeline(chain, 0, nil)
	results := pipe.VerifyMany(context.Background(), registryContract, map[uint64]canonical.Commitment{
		1: r1.Commitment,
		2: canonical.HashText("not what was anchored"),
		3: canonical.Zero, // never anchored; fake returns the zero record
	}, nil)

	require.Len(t, results, 3)
	assert.NoError(t, results[1])

	var mismatch *VerificationMismatchError
	require.ErrorAs(t, results[2], &mismatch)
	assert.Equal(t, r2.Commitment, mismatch.Actual)

	assert.NoError(t, results[3])
}
