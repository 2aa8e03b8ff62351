package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/verba-dev/verba/internal/embed"
	"github.com/verba-dev/verba/internal/observability"
	"github.com/verba-dev/verba/internal/vector"
)

// Index implements vector.Index using Qdrant over gRPC. Query text is
// embedded through the configured provider before hitting the backend.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	provider    embed.Provider
	collection  string
}

// New creates a Qdrant-backed index.
func New(ctx context.Context, host string, port int, collection string, provider embed.Provider) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		provider:    provider,
		collection:  collection,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet. dim must match the embedding provider's output size.
func (x *Index) EnsureCollection(ctx context.Context, dim int) error {
	resp, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant list collections: %w", err)
	}
	for _, c := range resp.Collections {
		if c.Name == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %q: %w", x.collection, err)
	}
	return nil
}

func (x *Index) Store(ctx context.Context, doc vector.Document) error {
	ctx, span := observability.StartIndexSpan(ctx, "qdrant", "store")
	defer span.End()

	vecs, err := x.provider.Embed(ctx, []string{doc.Content})
	if err != nil {
		err = fmt.Errorf("embedding document: %w", err)
		observability.RecordError(span, err)
		return err
	}

	payload := map[string]*pb.Value{
		"content": {Kind: &pb.Value_StringValue{StringValue: doc.Content}},
	}
	for k, v := range doc.Metadata {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}

	_, err = x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Points: []*pb.PointStruct{{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: doc.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vecs[0]}}},
			Payload: payload,
		}},
	})
	if err != nil {
		err = fmt.Errorf("qdrant upsert: %w", err)
		observability.RecordError(span, err)
		return err
	}
	return nil
}

func (x *Index) Query(ctx context.Context, text string, k int, filter map[string]string) ([]vector.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, span := observability.StartIndexSpan(ctx, "qdrant", "query")
	defer span.End()

	vecs, err := x.provider.Embed(ctx, []string{text})
	if err != nil {
		err = fmt.Errorf("embedding query: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}

	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vecs[0],
		Limit:          uint64(k),
		Filter:         buildFilter(filter),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		err = fmt.Errorf("qdrant search: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}

	hits := make([]vector.Hit, len(resp.Result))
	for i, pt := range resp.Result {
		content := ""
		meta := make(map[string]string)
		for key, v := range pt.Payload {
			if key == "content" {
				content = v.GetStringValue()
			} else {
				meta[key] = v.GetStringValue()
			}
		}
		hits[i] = vector.Hit{
			ID:       pt.Id.GetUuid(),
			Score:    pt.Score,
			Content:  content,
			Metadata: meta,
		}
	}
	return hits, nil
}

// Ping verifies the backend is reachable without touching the embedder.
func (x *Index) Ping(ctx context.Context) error {
	_, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	return err
}

func (x *Index) Close() error {
	return x.conn.Close()
}

// buildFilter turns exact-match metadata predicates into a Qdrant filter.
func buildFilter(filter map[string]string) *pb.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*pb.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   k,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: v}},
				},
			},
		})
	}
	return &pb.Filter{Must: must}
}

var _ vector.Index = (*Index)(nil)
