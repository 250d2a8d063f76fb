package pulse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// span is a contiguous range of items [off, off+n).
type span struct {
	off, n int
}

// block is one sub-request: the pair of chunk indices it compares.
type block struct {
	row, col int
}

// plan partitions a similarity comparison into blocks. Blocks are listed in
// row-major order over chunk indices; results are mapped back to blocks by
// position in this list, never by completion order.
type plan struct {
	self   bool
	rows   []span
	cols   []span
	blocks []block
}

func chunkSpans(n, size int) []span {
	if size < 1 {
		size = 1
	}
	spans := make([]span, 0, (n+size-1)/size)
	for off := 0; off < n; off += size {
		spans = append(spans, span{off: off, n: min(size, n-off)})
	}
	return spans
}

// planSelf partitions an n-item self comparison under limit maxItems. Chunks
// are maxItems/2 wide so that any two of them fit in one request; only the
// upper triangle of chunk pairs (i <= j) is requested.
func planSelf(n, maxItems int) plan {
	if n <= maxItems {
		whole := []span{{0, n}}
		return plan{self: true, rows: whole, cols: whole, blocks: []block{{0, 0}}}
	}
	spans := chunkSpans(n, maxItems/2)
	p := plan{self: true, rows: spans, cols: spans}
	for i := range spans {
		for j := i; j < len(spans); j++ {
			p.blocks = append(p.blocks, block{i, j})
		}
	}
	return p
}

// planCross partitions an a×b cross comparison under limit maxItems. When
// the smaller side fits alongside a chunk of the larger it is kept whole;
// otherwise both sides are chunked to maxItems/2.
func planCross(a, b, maxItems int) plan {
	var p plan
	switch small := min(a, b); {
	case a+b <= maxItems:
		p.rows, p.cols = []span{{0, a}}, []span{{0, b}}
	case small < maxItems:
		if a <= b {
			p.rows, p.cols = []span{{0, a}}, chunkSpans(b, maxItems-small)
		} else {
			p.rows, p.cols = chunkSpans(a, maxItems-small), []span{{0, b}}
		}
	default:
		p.rows, p.cols = chunkSpans(a, maxItems/2), chunkSpans(b, maxItems/2)
	}
	for i := range p.rows {
		for j := range p.cols {
			p.blocks = append(p.blocks, block{i, j})
		}
	}
	return p
}

// body builds the request for block k. A single-item intra-chunk block needs
// no request and yields nil.
func (p plan) body(k int, req SimilarityRequest) *SimilarityRequest {
	blk := p.blocks[k]
	r, c := p.rows[blk.row], p.cols[blk.col]
	if p.self {
		if blk.row == blk.col {
			if r.n == 1 {
				return nil
			}
			return &SimilarityRequest{Set: req.Set[r.off : r.off+r.n]}
		}
		return &SimilarityRequest{
			SetA: req.Set[r.off : r.off+r.n],
			SetB: req.Set[c.off : c.off+c.n],
		}
	}
	return &SimilarityRequest{
		SetA: req.SetA[r.off : r.off+r.n],
		SetB: req.SetB[c.off : c.off+c.n],
	}
}

// stitch writes each block's matrix into a zero-initialised output matrix.
// Off-diagonal self blocks are also written transposed into their mirror.
func (p plan) stitch(results [][][]float64) ([][]float64, error) {
	last := func(spans []span) int {
		if len(spans) == 0 {
			return 0
		}
		s := spans[len(spans)-1]
		return s.off + s.n
	}
	nRows, nCols := last(p.rows), last(p.cols)

	out := make([][]float64, nRows)
	for i := range out {
		out[i] = make([]float64, nCols)
	}

	for k, blk := range p.blocks {
		r, c := p.rows[blk.row], p.cols[blk.col]
		m := results[k]
		if len(m) != r.n {
			return nil, fmt.Errorf("block (%d,%d): got %d rows, want %d", blk.row, blk.col, len(m), r.n)
		}
		for i, row := range m {
			if len(row) != c.n {
				return nil, fmt.Errorf("block (%d,%d): row %d has %d columns, want %d", blk.row, blk.col, i, len(row), c.n)
			}
			copy(out[r.off+i][c.off:c.off+c.n], row)
			if p.self && blk.row != blk.col {
				for j, v := range row {
					out[c.off+j][r.off+i] = v
				}
			}
		}
	}
	return out, nil
}

// Batcher executes similarity requests, splitting those that exceed the
// configured item ceiling into sub-requests and stitching the results.
type Batcher struct {
	transport Transport
	poller    *Poller
	config    Config
	logger    *slog.Logger
}

// NewBatcher creates a Batcher submitting through transport and waiting on
// jobs through poller.
func NewBatcher(transport Transport, poller *Poller, config Config, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Batcher{
		transport: transport,
		poller:    poller,
		config:    config,
		logger:    logger.With("component", "similarity-batcher"),
	}
}

// Similarity computes the similarity matrix for req. Requests within the
// item ceiling are sent unchanged. Larger ones are split into slow-mode
// sub-requests that are all submitted before any is awaited; their results
// are returned in matrix mode, with flattened values added if req.Flatten is
// set. Any failed sub-request fails the whole call.
func (b *Batcher) Similarity(ctx context.Context, req SimilarityRequest) (*SimilarityResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	maxItems := b.config.maxItems()

	var p plan
	if req.IsSelf() {
		switch n := len(req.Set); {
		case n == 0:
			return &SimilarityResponse{Scenario: ScenarioSelf, Mode: ModeMatrix, Matrix: [][]float64{}}, nil
		case n == 1:
			return &SimilarityResponse{Scenario: ScenarioSelf, Mode: ModeMatrix, N: 1, Matrix: [][]float64{{1}}, Flattened: []float64{1}}, nil
		case n <= maxItems:
			return b.single(ctx, req)
		}
		p = planSelf(len(req.Set), maxItems)
	} else {
		a, n := len(req.SetA), len(req.SetB)
		if a == 0 || n == 0 {
			m := make([][]float64, a)
			for i := range m {
				m[i] = []float64{}
			}
			return &SimilarityResponse{Scenario: ScenarioCross, Mode: ModeMatrix, N: a, Matrix: m}, nil
		}
		if a+n <= maxItems {
			return b.single(ctx, req)
		}
		p = planCross(a, n, maxItems)
	}

	return b.batched(ctx, req, p)
}

func (b *Batcher) single(ctx context.Context, req SimilarityRequest) (*SimilarityResponse, error) {
	sub, err := b.transport.Submit(ctx, OpSimilarity, &req, req.Fast)
	if err != nil {
		return nil, err
	}
	return b.resolve(ctx, sub, b.config.JobTimeout)
}

func (b *Batcher) resolve(ctx context.Context, sub *Submission, timeout time.Duration) (*SimilarityResponse, error) {
	raw := sub.Result
	if sub.Job != nil {
		job, err := b.poller.Wait(ctx, sub.Job, timeout)
		if err != nil {
			return nil, err
		}
		if job.Result == nil {
			return nil, fmt.Errorf("job %s completed without a result", job.ID)
		}
		raw = job.Result
	}
	resp, err := UnmarshalResult[SimilarityResponse](raw)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *Batcher) batched(ctx context.Context, req SimilarityRequest, p plan) (*SimilarityResponse, error) {
	logger := b.logger.With("blocks", len(p.blocks), "row_chunks", len(p.rows), "col_chunks", len(p.cols))
	logger.Info("splitting similarity request")

	subs := make([]*Submission, len(p.blocks))
	for k := range p.blocks {
		body := p.body(k, req)
		if body == nil {
			continue
		}
		sub, err := b.transport.Submit(ctx, OpSimilarity, body, false)
		if err != nil {
			return nil, fmt.Errorf("submitting block %d: %w", k, err)
		}
		subs[k] = sub
	}

	results := make([][][]float64, len(p.blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.config.BatchConcurrency))
	for k := range p.blocks {
		g.Go(func() error {
			if subs[k] == nil {
				results[k] = [][]float64{{1}}
				return nil
			}
			resp, err := b.resolve(gctx, subs[k], b.config.BatchJobTimeout)
			if err != nil {
				return fmt.Errorf("block %d: %w", k, err)
			}
			m, err := resp.Similarity()
			if err != nil {
				return fmt.Errorf("block %d: %w", k, err)
			}
			results[k] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matrix, err := p.stitch(results)
	if err != nil {
		return nil, err
	}
	logger.Debug("stitched similarity matrix", "rows", len(matrix))

	resp := &SimilarityResponse{Mode: ModeMatrix, N: len(matrix), Matrix: matrix}
	if p.self {
		resp.Scenario = ScenarioSelf
	} else {
		resp.Scenario = ScenarioCross
	}
	if req.Flatten {
		resp.Flattened = flatten(matrix, p.self)
	}
	return resp, nil
}

// flatten lists the upper triangle (diagonal included) of a self matrix, or
// every cell of a cross matrix, in row-major order.
func flatten(m [][]float64, self bool) []float64 {
	var out []float64
	for i, row := range m {
		if self {
			out = append(out, row[i:]...)
		} else {
			out = append(out, row...)
		}
	}
	return out
}
