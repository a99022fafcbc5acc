package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/embedder"
	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/search"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/internal/symbolpath"
	"github.com/codegraph-dev/codegraph/pkg/types"
)

const testRepo = "acme/payments"

// PipelineTestSuite exercises the full flow: ingest chunks, embed,
// build the graph, search, and delete.
type PipelineTestSuite struct {
	suite.Suite
	storage  storage.Storage
	cascade  *cache.Cascade
	embedder embedder.Embedder
	graph    *graph.Engine
	search   *search.Engine
	ctx      context.Context
}

// SetupTest runs before each test
func (s *PipelineTestSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.storage = store

	cascade, err := cache.NewCascade(256, cache.NewSQLiteSharedTier(store), time.Minute, nil)
	s.Require().NoError(err)
	s.cascade = cascade

	emb, err := embedder.NewLocalProvider(nil)
	s.Require().NoError(err)
	s.embedder = emb

	s.graph = graph.NewEngine(store, cascade, nil)
	s.search = search.NewEngine(store, cascade, emb, nil)

	s.ingestFixture()
}

// TearDownTest runs after each test
func (s *PipelineTestSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func fixtureChunk(id, filePath, name string, chunkType types.ChunkType, start, end int, content string) *types.Chunk {
	return &types.Chunk{
		ID:         id,
		Repository: testRepo,
		FilePath:   filePath,
		ChunkType:  chunkType,
		Name:       name,
		Content:    content,
		Language:   "python",
		StartLine:  start,
		EndLine:    end,
	}
}

// ingestFixture stores a small payment service: a handler that calls a
// validator, a class with a method, and a docstring chunk that never
// becomes a node.
func (s *PipelineTestSuite) ingestFixture() {
	chunks := []*types.Chunk{
		fixtureChunk("c-charge", "src/api/routes/charge.py", "create_charge", types.ChunkFunction, 10, 30,
			"def create_charge(req): validate_amount(req.amount); return Charge.save(req)"),
		fixtureChunk("c-validate", "src/api/routes/charge.py", "validate_amount", types.ChunkFunction, 40, 50,
			"def validate_amount(amount): raise if amount <= 0"),
		fixtureChunk("c-model", "src/models/charge.py", "Charge", types.ChunkClass, 1, 60,
			"class Charge: persisted payment record"),
		fixtureChunk("c-save", "src/models/charge.py", "save", types.ChunkMethod, 20, 40,
			"def save(self): write the charge row"),
		fixtureChunk("c-doc", "src/api/routes/charge.py", "", types.ChunkOther, 1, 5,
			"module docstring for charge routes"),
	}
	chunks[0].Metadata.Calls = []types.CallRef{{Target: "validate_amount"}, {Target: "models.charge.Charge.save"}}
	chunks[0].Metadata.Imports = []types.ImportRef{{Path: "models.charge", Symbol: "Charge"}}

	for _, chunk := range chunks {
		chunk.NamePath = symbolpath.ResolveChunk(chunk, "", chunks)
	}
	s.Require().NoError(s.storage.AddChunks(s.ctx, chunks))

	// Embed concurrently the way the ingestion handler does
	g, gctx := errgroup.WithContext(s.ctx)
	g.SetLimit(4)
	for _, chunk := range chunks {
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, chunk.Content, types.DomainCode)
			if err != nil {
				return err
			}
			return s.storage.UpsertEmbedding(gctx, &storage.Embedding{
				ChunkID:   chunk.ID,
				Domain:    types.DomainCode,
				Vector:    storage.SerializeVector(vector),
				Dimension: len(vector),
				Provider:  s.embedder.Provider(),
				Model:     s.embedder.Model(types.DomainCode),
			})
		})
	}
	s.Require().NoError(g.Wait())
}

func (s *PipelineTestSuite) TestQualifiedPaths() {
	chunk, err := s.storage.GetChunk(s.ctx, "c-charge")
	s.Require().NoError(err)
	s.Equal("api.routes.charge.create_charge", chunk.NamePath)

	chunk, err = s.storage.GetChunk(s.ctx, "c-save")
	s.Require().NoError(err)
	s.Equal("models.charge.Charge.save", chunk.NamePath)
}

func (s *PipelineTestSuite) TestBuildGraphAndSearch() {
	stats, err := s.graph.BuildGraph(s.ctx, testRepo, "python")
	s.Require().NoError(err)

	s.Equal(4, stats.TotalNodes)
	s.Equal(1, stats.NodesSkipped)
	s.Equal(2, stats.EdgesByType[types.EdgeCalls])
	s.Equal(1, stats.EdgesByType[types.EdgeImports])
	s.Zero(stats.UnresolvedCalls)
	s.InDelta(1.0, stats.ResolutionAccuracy, 1e-9)

	resp, err := s.search.Search(s.ctx, search.Request{
		Repository:     testRepo,
		Query:          "validate amount",
		LexicalEnabled: true,
		VectorEnabled:  true,
		Domain:         types.DomainCode,
		IncludeLinks:   true,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(resp.Results)

	var validator *types.SearchResult
	for i := range resp.Results {
		if resp.Results[i].ChunkID == "c-validate" {
			validator = &resp.Results[i]
		}
	}
	s.Require().NotNil(validator)

	// The validator is called by the handler, so an incoming link shows up
	var incoming int
	for _, link := range validator.Links {
		if link.Direction == types.LinkIncoming && link.EdgeType == types.EdgeCalls {
			incoming++
			s.Equal("api.routes.charge.create_charge", link.Label)
		}
	}
	s.Equal(1, incoming)
}

func (s *PipelineTestSuite) TestHybridRanksExactContentFirst() {
	_, err := s.graph.BuildGraph(s.ctx, testRepo, "python")
	s.Require().NoError(err)

	content := "def save(self): write the charge row"
	resp, err := s.search.Search(s.ctx, search.Request{
		Repository:     testRepo,
		Query:          content,
		LexicalEnabled: true,
		VectorEnabled:  true,
		Domain:         types.DomainCode,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(resp.Results)
	s.Equal("c-save", resp.Results[0].ChunkID)
	s.Require().NotNil(resp.Results[0].VectorScore)
	s.InDelta(1.0, *resp.Results[0].VectorScore, 1e-4)
}

func (s *PipelineTestSuite) TestRebuildIsIdempotent() {
	first, err := s.graph.BuildGraph(s.ctx, testRepo, "python")
	s.Require().NoError(err)

	s.Require().NoError(s.graph.DeleteByRepository(s.ctx, testRepo))
	s.ingestFixture()

	second, err := s.graph.BuildGraph(s.ctx, testRepo, "python")
	s.Require().NoError(err)

	s.Equal(first.TotalNodes, second.TotalNodes)
	s.Equal(first.TotalEdges, second.TotalEdges)
	s.Equal(first.EdgesByType, second.EdgesByType)
}

func (s *PipelineTestSuite) TestDeleteRepositoryClearsEverything() {
	_, err := s.graph.BuildGraph(s.ctx, testRepo, "python")
	s.Require().NoError(err)

	s.Require().NoError(s.graph.DeleteByRepository(s.ctx, testRepo))

	status, err := s.storage.GetStatus(s.ctx, testRepo)
	s.Require().NoError(err)
	s.Zero(status.Chunks)
	s.Zero(status.Nodes)
	s.Zero(status.Edges)

	resp, err := s.search.Search(s.ctx, search.Request{
		Repository:     testRepo,
		Query:          "charge",
		LexicalEnabled: true,
	})
	s.Require().NoError(err)
	s.Zero(resp.TotalResults)
}

func (s *PipelineTestSuite) TestRepeatedSearchServedFromCache() {
	req := search.Request{
		Repository:     testRepo,
		Query:          "validate amount",
		LexicalEnabled: true,
	}

	first, err := s.search.Search(s.ctx, req)
	s.Require().NoError(err)
	s.Require().NotEmpty(first.Results)
	s.False(first.CacheServed)

	second, err := s.search.Search(s.ctx, req)
	s.Require().NoError(err)
	s.True(second.CacheServed)
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
