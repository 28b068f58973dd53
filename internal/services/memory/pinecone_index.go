// File: internal/services/memory/pinecone_index.go
package memory

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	metaUserID  = "user_id"
	metaChatID  = "chat_id"
	metaRole    = "role"
	metaContent = "content"
)

// PineconeIndex is a VectorIndex backed by a Pinecone serverless index.
// Every vector carries the owning user id so queries never cross users.
type PineconeIndex struct {
	conn   *pinecone.IndexConnection
	logger Logger
}

func NewPineconeIndex(config *Config, logger Logger) (*PineconeIndex, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: config.APIKey})
	if err != nil {
		return nil, NewOperationError("create pinecone client", err)
	}
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: config.IndexHost, Namespace: config.Namespace})
	if err != nil {
		return nil, NewOperationError("connect to pinecone index", err)
	}
	logger.Info("pinecone index connected", "host", config.IndexHost, "namespace", config.Namespace)
	return &PineconeIndex{conn: conn, logger: logger}, nil
}

func (p *PineconeIndex) Upsert(ctx context.Context, records []Record) error {
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		meta, err := recordMetadata(rec)
		if err != nil {
			return NewOperationError("build metadata", err)
		}
		values := rec.Values
		vectors = append(vectors, &pinecone.Vector{Id: rec.ID, Values: &values, Metadata: meta})
	}
	n, err := p.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return NewOperationError("upsert vectors", err)
	}
	p.logger.Debug("memory vectors upserted", "count", n)
	return nil
}

func (p *PineconeIndex) Query(ctx context.Context, userID string, vector []float32, topK int) ([]Match, error) {
	filter, err := userFilter(userID, "")
	if err != nil {
		return nil, NewOperationError("build filter", err)
	}
	resp, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, NewOperationError("query vectors", err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, sv := range resp.Matches {
		if sv == nil || sv.Vector == nil {
			continue
		}
		matches = append(matches, matchFromMetadata(sv.Vector.Id, sv.Score, sv.Vector.Metadata))
	}
	return matches, nil
}

func (p *PineconeIndex) DeleteChat(ctx context.Context, userID, chatID string) error {
	filter, err := userFilter(userID, chatID)
	if err != nil {
		return NewOperationError("build filter", err)
	}
	if err := p.conn.DeleteVectorsByFilter(ctx, filter); err != nil {
		return NewOperationError("delete vectors", err)
	}
	return nil
}

func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}

func recordMetadata(rec Record) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		metaUserID:  rec.UserID,
		metaChatID:  rec.ChatID,
		metaRole:    rec.Role,
		metaContent: rec.Content,
	})
}

// userFilter matches a user's vectors, optionally narrowed to one chat.
func userFilter(userID, chatID string) (*structpb.Struct, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	f := map[string]any{
		metaUserID: map[string]any{"$eq": userID},
	}
	if chatID != "" {
		f[metaChatID] = map[string]any{"$eq": chatID}
	}
	return structpb.NewStruct(f)
}

func matchFromMetadata(id string, score float32, meta *structpb.Struct) Match {
	m := Match{ID: id, Score: score}
	if meta == nil {
		return m
	}
	fields := meta.GetFields()
	m.Role = fields[metaRole].GetStringValue()
	m.Content = fields[metaContent].GetStringValue()
	return m
}
