package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

// Field names for the transcript collection schema.
const (
	FieldID             = "id"
	FieldText           = "text"
	FieldVideoID        = "video_id"
	FieldChunkIndex     = "chunk_index"
	FieldEmbeddingModel = "embedding_model"
	FieldLanguage       = "language"
	FieldVector         = "vector"
)

// VarChar limits for the schema.
const (
	maxIDLength    = "255"
	maxTextLength  = "65535"
	maxTagLength   = "255"
	maxLangLength  = "64"
)

// filterableFields are the payload fields that carry a scalar index and may
// appear in search filters. Anything else is rejected before it reaches the
// store, so a typo cannot silently match nothing.
var filterableFields = map[string]bool{
	FieldVideoID:        true,
	FieldEmbeddingModel: true,
	FieldLanguage:       true,
}

// MilvusStore adapts a Milvus deployment to the VectorStore interface.
type MilvusStore struct {
	client *milvusclient.Client
	dim    int
}

// NewMilvusStore connects to Milvus at addr. dim is the collection
// dimensionality every upserted vector must match.
func NewMilvusStore(ctx context.Context, addr string, dim int) (*MilvusStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	logger.Info("Connecting to Milvus at %s with dimension %d", addr, dim)
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	return &MilvusStore{client: c, dim: dim}, nil
}

// EnsureCollection creates the collection with the transcript schema if it
// does not exist, ensures the vector and scalar indexes, and loads the
// collection for search. Repeated calls are no-ops; index-creation failures
// caused by a pre-existing index are swallowed.
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim != s.dim {
		return fmt.Errorf("%w: collection %s wants dimension %d, store configured for %d",
			core.ErrDimensionMismatch, name, dim, s.dim)
	}

	hasOpt := milvusclient.NewHasCollectionOption(name)
	exists, err := s.client.HasCollection(ctx, hasOpt)
	if err != nil {
		return fmt.Errorf("%w: failed to check if collection exists: %v", core.ErrStoreRead, err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: name,
			Description:    "Video transcript passages for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": maxIDLength},
				},
				{
					Name:       FieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxTextLength},
				},
				{
					Name:       FieldVideoID,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxTagLength},
				},
				{
					Name:     FieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       FieldEmbeddingModel,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxTagLength},
				},
				{
					Name:       FieldLanguage,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": maxLangLength},
				},
				{
					Name:       FieldVector,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(name, schema)
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("%w: failed to create collection %s: %v", core.ErrStoreWrite, name, err)
		}
		logger.Info("Created collection: %s", name)
	}

	// Vector index for cosine similarity search.
	vecIdx := index.NewHNSWIndex(entity.COSINE, 16, 200)
	if err := s.createIndex(ctx, name, FieldVector, vecIdx); err != nil {
		return err
	}

	// Scalar indexes backing equality filters. Searching one video's
	// passages, or one embedding space, depends on these.
	for field := range filterableFields {
		if err := s.createIndex(ctx, name, field, index.NewInvertedIndex()); err != nil {
			return err
		}
	}

	loadOpt := milvusclient.NewLoadCollectionOption(name)
	if _, err := s.client.LoadCollection(ctx, loadOpt); err != nil {
		return fmt.Errorf("%w: failed to load collection %s: %v", core.ErrStoreRead, name, err)
	}
	return nil
}

func (s *MilvusStore) createIndex(ctx context.Context, collection, field string, idx index.Index) error {
	indexOpt := milvusclient.NewCreateIndexOption(collection, field, idx)
	_, err := s.client.CreateIndex(ctx, indexOpt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exist") {
			logger.Debug("Index on %s.%s already exists", collection, field)
			return nil
		}
		return fmt.Errorf("%w: failed to create index on %s.%s: %v", core.ErrStoreWrite, collection, field, err)
	}
	return nil
}

// Upsert writes the batch in one call, replacing records that share a
// primary key. A rejected batch surfaces as ErrStoreWrite; nothing is
// retried here so re-ingestion stays the recovery path.
func (s *MilvusStore) Upsert(ctx context.Context, name string, records []core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	texts := make([]string, len(records))
	videoIDs := make([]string, len(records))
	chunkIndexes := make([]int64, len(records))
	models := make([]string, len(records))
	languages := make([]string, len(records))
	vectors := make([][]float32, len(records))

	for i, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("%w: record %s has %d dimensions, collection %s wants %d",
				core.ErrDimensionMismatch, r.ID, len(r.Vector), name, s.dim)
		}
		ids[i] = r.ID
		texts[i] = r.Passage.Text
		videoIDs[i] = r.Passage.VideoID
		chunkIndexes[i] = int64(r.Passage.Index)
		models[i] = r.Passage.EmbeddingModel
		languages[i] = r.Passage.Language
		vectors[i] = r.Vector
	}

	upsertOpt := milvusclient.NewColumnBasedInsertOption(name,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldVideoID, videoIDs),
		column.NewColumnInt64(FieldChunkIndex, chunkIndexes),
		column.NewColumnVarChar(FieldEmbeddingModel, models),
		column.NewColumnVarChar(FieldLanguage, languages),
		column.NewColumnFloatVector(FieldVector, s.dim, vectors),
	)
	if _, err := s.client.Upsert(ctx, upsertOpt); err != nil {
		logger.Error("Upsert of %d records into %s failed: %v", len(records), name, err)
		return fmt.Errorf("%w: upsert into %s: %v", core.ErrStoreWrite, name, err)
	}
	logger.Debug("Upserted %d records into %s", len(records), name)
	return nil
}

// HasSource reports whether any passage of the video is already stored.
func (s *MilvusStore) HasSource(ctx context.Context, name, videoID string) (bool, error) {
	expr := fmt.Sprintf(`%s == "%s"`, FieldVideoID, escapeValue(videoID))

	queryOpt := milvusclient.NewQueryOption(name)
	queryOpt.WithFilter(expr)
	queryOpt.WithOutputFields(FieldID)
	queryOpt.WithLimit(1)

	result, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return false, fmt.Errorf("%w: existence check for video %s: %v", core.ErrStoreRead, videoID, err)
	}
	return result.ResultCount > 0, nil
}

// Search runs a filtered similarity search and returns up to topK results
// ordered by descending score. All filters must match (logical AND).
func (s *MilvusStore) Search(ctx context.Context, name string, vector []float32, filters map[string]string, topK int) ([]core.RetrievedResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", core.ErrStoreRead, topK)
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection wants %d",
			core.ErrDimensionMismatch, len(vector), s.dim)
	}
	expr, err := buildFilterExpr(filters)
	if err != nil {
		return nil, err
	}

	searchOpt := milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(FieldText, FieldVideoID, FieldChunkIndex)
	if expr != "" {
		searchOpt = searchOpt.WithFilter(expr)
	}

	resultSets, err := s.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("%w: search in %s: %v", core.ErrStoreRead, name, err)
	}
	if len(resultSets) == 0 {
		return []core.RetrievedResult{}, nil
	}

	rs := resultSets[0]
	results := make([]core.RetrievedResult, 0, rs.ResultCount)
	textCol := rs.GetColumn(FieldText)
	videoCol := rs.GetColumn(FieldVideoID)
	indexCol := rs.GetColumn(FieldChunkIndex)
	if textCol == nil || videoCol == nil || indexCol == nil {
		return nil, fmt.Errorf("%w: search result missing payload columns", core.ErrStoreRead)
	}
	for i := 0; i < rs.ResultCount; i++ {
		text, err := textCol.GetAsString(i)
		if err != nil {
			logger.Warn("Skipping search hit %d: bad text column: %v", i, err)
			continue
		}
		videoID, err := videoCol.GetAsString(i)
		if err != nil {
			logger.Warn("Skipping search hit %d: bad video_id column: %v", i, err)
			continue
		}
		chunkIndex, err := indexCol.GetAsInt64(i)
		if err != nil {
			logger.Warn("Skipping search hit %d: bad chunk_index column: %v", i, err)
			continue
		}
		score := float32(0)
		if i < len(rs.Scores) {
			score = rs.Scores[i]
		}
		results = append(results, core.RetrievedResult{
			Score:      score,
			Text:       text,
			VideoID:    videoID,
			ChunkIndex: int(chunkIndex),
		})
	}
	return results, nil
}

// Close closes the connection to Milvus.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}

// buildFilterExpr joins equality conditions with "and". Only indexed fields
// are accepted; sorting keeps the expression deterministic.
func buildFilterExpr(filters map[string]string) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if !filterableFields[k] {
			return "", fmt.Errorf("%w: field %q is not filterable", core.ErrStoreRead, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conditions := make([]string, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, fmt.Sprintf(`%s == "%s"`, k, escapeValue(filters[k])))
	}
	return strings.Join(conditions, " and "), nil
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
