package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 1024

// QdrantConnectionConfig holds configuration for the candidate vector index.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // enables TLS
	UseTLS          bool
	VectorDimension int
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// CandidateIndex stores candidate embeddings in Qdrant for similarity lookups.
type CandidateIndex struct {
	conn            *grpc.ClientConn
	points          pb.PointsClient
	collections     pb.CollectionsClient
	collection      string
	vectorDimension int
}

// NewCandidateIndex dials Qdrant. Local instances use plaintext, Qdrant Cloud uses TLS plus API key.
// Parameters:
//   - cfg: connection settings.
// Returns:
//   - *CandidateIndex: index bound to cfg.Collection.
//   - error: non-nil if the client cannot be created.
func NewCandidateIndex(cfg *QdrantConnectionConfig) (*CandidateIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &CandidateIndex{
		conn:            conn,
		points:          pb.NewPointsClient(conn),
		collections:     pb.NewCollectionsClient(conn),
		collection:      cfg.Collection,
		vectorDimension: dim,
	}, nil
}

// Close closes the gRPC connection.
func (r *CandidateIndex) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection when missing and checks the vector size otherwise.
func (r *CandidateIndex) EnsureCollection(ctx context.Context) error {
	info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collection, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, p := range vectors.GetParamsMap().GetMap() {
		if p.GetSize() > 0 {
			return p.GetSize(), true
		}
	}
	return 0, false
}

// CandidatePayload is stored next to each candidate vector.
type CandidatePayload struct {
	CandidateID    string
	VideoID        string
	QueryRunID     string
	Sport          string
	Title          string
	RelevanceScore float64
}

// Upsert stores a candidate vector keyed by the candidate id.
func (r *CandidateIndex) Upsert(ctx context.Context, vector []float32, payload *CandidatePayload) error {
	uid, err := uuid.Parse(payload.CandidateID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				"candidate_id":    stringValue(payload.CandidateID),
				"video_id":        stringValue(payload.VideoID),
				"query_run_id":    stringValue(payload.QueryRunID),
				"sport":           stringValue(payload.Sport),
				"title":           stringValue(payload.Title),
				"relevance_score": {Kind: &pb.Value_DoubleValue{DoubleValue: payload.RelevanceScore}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// IndexHit is one similarity search result.
type IndexHit struct {
	CandidateID string
	Score       float32
	Payload     *CandidatePayload
}

// Search returns the candidates closest to vector, optionally restricted to one sport.
func (r *CandidateIndex) Search(ctx context.Context, vector []float32, topK int, sport string) ([]IndexHit, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if sport != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "sport",
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: sport}},
				},
			},
		}}}
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]IndexHit, len(resp.Result))
	for i, scored := range resp.Result {
		hits[i] = IndexHit{
			CandidateID: scored.Id.GetUuid(),
			Score:       scored.Score,
			Payload:     parseCandidatePayload(scored.Payload),
		}
	}
	return hits, nil
}

func parseCandidatePayload(payload map[string]*pb.Value) *CandidatePayload {
	if payload == nil {
		return nil
	}
	return &CandidatePayload{
		CandidateID:    payload["candidate_id"].GetStringValue(),
		VideoID:        payload["video_id"].GetStringValue(),
		QueryRunID:     payload["query_run_id"].GetStringValue(),
		Sport:          payload["sport"].GetStringValue(),
		Title:          payload["title"].GetStringValue(),
		RelevanceScore: payload["relevance_score"].GetDoubleValue(),
	}
}

// Delete removes a candidate's vector.
func (r *CandidateIndex) Delete(ctx context.Context, candidateID string) error {
	uid, err := uuid.Parse(candidateID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}
