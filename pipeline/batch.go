package pipeline

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/tx"
)

// BatchConfig tunes concurrent anchor reads. Reads are independent view
// calls, so unlike anchoring they can fan out freely.
type BatchConfig struct {
	// Concurrency limits in-flight RPC calls. Zero means 5.
	Concurrency int

	// OnProgress, when set, is called after each completed item.
	OnProgress func(progress BatchProgress)
}

// BatchProgress reports how far a batch read has come.
type BatchProgress struct {
	Completed int
	Total     int
	Success   int
	Failed    int
}

// DefaultBatchConfig returns the default batch settings.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{Concurrency: 5}
}

// BatchRecord pairs a token with its read outcome. Exactly one of Record
// and Err is set.
type BatchRecord struct {
	TokenID uint64
	Record  *tx.AnchorRecord
	Err     error
}

// ReadAnchorRecords reads the anchor records of many tokens concurrently.
// Results come back in input order; per-token failures are recorded, not
// fatal for the batch.
func (p *SubmissionPipeline) ReadAnchorRecords(ctx context.Context, contract common.Address, tokenIDs []uint64, cfg *BatchConfig) []BatchRecord {
	if cfg == nil {
		cfg = DefaultBatchConfig()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	out := make([]BatchRecord, len(tokenIDs))

	var progressMu sync.Mutex
	completed, success, failed := 0, 0, 0
	report := func(err error) {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if err != nil {
			failed++
		} else {
			success++
		}
		if cfg.OnProgress != nil {
			cfg.OnProgress(BatchProgress{
				Completed: completed,
				Total:     len(tokenIDs),
				Success:   success,
				Failed:    failed,
			})
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i, tokenID := range tokenIDs {
		wg.Add(1)
		go func(idx int, id uint64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			record, err := p.ReadAnchorRecord(ctx, contract, id)
			out[idx] = BatchRecord{TokenID: id, Record: record, Err: err}
			report(err)
		}(i, tokenID)
	}
	wg.Wait()

	return out
}

// VerifyMany checks many tokens against their expected commitments
// concurrently. The result maps token id to the verification error, with
// nil meaning the record matches.
func (p *SubmissionPipeline) VerifyMany(ctx context.Context, contract common.Address, expected map[uint64]canonical.Commitment, cfg *BatchConfig) map[uint64]error {
	tokenIDs := make([]uint64, 0, len(expected))
	for id := range expected {
		tokenIDs = append(tokenIDs, id)
	}

	results := p.ReadAnchorRecords(ctx, contract, tokenIDs, cfg)

	out := make(map[uint64]error, len(results))
	for _, r := range results {
		if r.Err != nil {
			out[r.TokenID] = r.Err
			continue
		}
		if r.Record.Commitment != expected[r.TokenID] {
			out[r.TokenID] = &VerificationMismatchError{
				TokenID:  r.TokenID,
				Expected: expected[r.TokenID],
				Actual:   r.Record.Commitment,
			}
			continue
		}
		out[r.TokenID] = nil
	}
	return out
}
