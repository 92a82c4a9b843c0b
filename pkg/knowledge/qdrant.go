package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// Collection is the collection holding all customers' chunks.
	Collection string

	// APIKey is an optional API key for authentication.
	APIKey string

	// VectorSize is the embedding dimension, used when creating the
	// collection. Defaults to 1536 (text-embedding-3-small).
	VectorSize uint64
}

// Qdrant implements Store using a single Qdrant collection with a
// customer_id payload field. Isolation is enforced by a must-match
// filter on every read and delete.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewQdrant creates a Qdrant-backed store and ensures the collection exists.
func NewQdrant(ctx context.Context, cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("knowledge: qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("knowledge: qdrant collection is required")
	}

	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge: parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("knowledge: invalid port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: create qdrant client: %w", err)
	}

	size := cfg.VectorSize
	if size == 0 {
		size = 1536
	}

	q := &Qdrant{
		client:     client,
		collection: cfg.Collection,
		vectorSize: size,
	}

	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return q, nil
}

// ensureCollection creates the collection if it does not exist yet.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("knowledge: create collection: %w", err)
	}
	return nil
}

// Search implements Store.
func (q *Qdrant) Search(ctx context.Context, customerID string, vector []float32, limit int) ([]Chunk, error) {
	if customerID == "" {
		return nil, fmt.Errorf("knowledge: customer id is required")
	}

	limitUint64 := uint64(limit)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter:         customerFilter(customerID, ""),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	chunks := make([]Chunk, 0, len(points))
	for _, point := range points {
		chunk := Chunk{
			CustomerID: customerID,
			Score:      point.Score,
		}

		if point.Id != nil {
			if uuid := point.Id.GetUuid(); uuid != "" {
				chunk.ID = uuid
			} else if num := point.Id.GetNum(); num != 0 {
				chunk.ID = fmt.Sprintf("%d", num)
			}
		}

		for k, v := range point.Payload {
			switch k {
			case "text":
				chunk.Text = v.GetStringValue()
			case "source":
				chunk.Source = v.GetStringValue()
			case "document_id":
				chunk.DocumentID = v.GetStringValue()
			}
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Upsert implements Store.
func (q *Qdrant) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s", ErrEmptyVector, chunk.ID)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"customer_id": chunk.CustomerID,
				"document_id": chunk.DocumentID,
				"source":      chunk.Source,
				"text":        chunk.Text,
			}),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteDocument implements Store.
func (q *Qdrant) DeleteDocument(ctx context.Context, customerID, documentID string) error {
	return q.deleteByFilter(ctx, customerFilter(customerID, documentID))
}

// DeleteCustomer implements Store.
func (q *Qdrant) DeleteCustomer(ctx context.Context, customerID string) error {
	return q.deleteByFilter(ctx, customerFilter(customerID, ""))
}

func (q *Qdrant) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Store.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

// customerFilter builds the isolation filter. The customer_id condition
// is always present; document_id narrows within the customer when set.
func customerFilter(customerID, documentID string) *qdrant.Filter {
	conditions := []*qdrant.Condition{matchKeyword("customer_id", customerID)}
	if documentID != "" {
		conditions = append(conditions, matchKeyword("document_id", documentID))
	}
	return &qdrant.Filter{Must: conditions}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// Compile-time check that Qdrant implements Store.
var _ Store = (*Qdrant)(nil)
