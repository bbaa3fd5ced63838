// Package history stores and retrieves per-fingerprint routing outcomes
// in DynamoDB, so a statement seen before can bias its next routing
// decision toward (or away from) the cluster it last ran on.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/config"
)

// entryTTL is how long a history record stays relevant before DynamoDB
// expires it; stale history is worse than no history.
const entryTTL = 24 * time.Hour

// Entry is one fingerprint's last recorded routing outcome.
type Entry struct {
	Fingerprint   string
	Cluster       config.ClusterName
	Score         float64
	Succeeded     bool
	ExecutionTime float64
	Cost          float64
	UpdatedAt     time.Time
}

// Metrics is the post-execution outcome reported against an
// already-decided fingerprint: execution_time, cost, and success from
// §4.5. Recording metrics never alters the stored cluster/score (the
// decision itself) and never extends the entry's expiration.
type Metrics struct {
	ExecutionTime float64
	Cost          float64
	Succeeded     bool
}

// ddbEntry is the DynamoDB item shape for Entry.
type ddbEntry struct {
	Fingerprint   string  `dynamodbav:"fingerprint"`
	Cluster       string  `dynamodbav:"cluster"`
	Score         float64 `dynamodbav:"score"`
	Succeeded     bool    `dynamodbav:"succeeded"`
	ExecutionTime float64 `dynamodbav:"execution_time"`
	Cost          float64 `dynamodbav:"cost"`
	UpdatedAt     string  `dynamodbav:"updated_at"`
	ExpiresAt     int64   `dynamodbav:"expires_at"`
}

// Store is the contract the decision engine uses to read and write
// routing history. A Store must never return an error the caller is
// required to surface to a client — StoreUnavailable-style failures are
// handled by the caller falling back to a neutral historical factor.
type Store interface {
	Lookup(ctx context.Context, fingerprint string) (*Entry, error)
	Persist(ctx context.Context, entry Entry) error
	RecordMetrics(ctx context.Context, fingerprint string, metrics Metrics) error
}

// DynamoStore is the production Store backed by a single DynamoDB table
// keyed on fingerprint.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	log       *zap.SugaredLogger
}

// NewDynamoStore builds a DynamoStore against an already-configured
// DynamoDB client.
func NewDynamoStore(client *dynamodb.Client, tableName string, log *zap.SugaredLogger) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, log: log}
}

// Lookup fetches the most recent entry for fingerprint. A missing item
// is not an error: it returns (nil, nil).
func (s *DynamoStore) Lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"fingerprint": &types.AttributeValueMemberS{Value: fingerprint},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: get item: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item ddbEntry
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("history: unmarshal item: %w", err)
	}
	updatedAt, _ := time.Parse(time.RFC3339, item.UpdatedAt)
	return &Entry{
		Fingerprint:   item.Fingerprint,
		Cluster:       config.ClusterName(item.Cluster),
		Score:         item.Score,
		Succeeded:     item.Succeeded,
		ExecutionTime: item.ExecutionTime,
		Cost:          item.Cost,
		UpdatedAt:     updatedAt,
	}, nil
}

// Persist upserts entry, setting a TTL attribute so old routing history
// ages out without any cleanup job. This is the decision write: it
// stores cluster, score and the succeeded flag as given in entry; the
// individual factors are not stored. Execution time and cost travel
// separately through RecordMetrics so that posting metrics later can't
// silently extend a decision's expiration.
func (s *DynamoStore) Persist(ctx context.Context, entry Entry) error {
	item, err := attributevalue.MarshalMap(ddbEntry{
		Fingerprint: entry.Fingerprint,
		Cluster:     string(entry.Cluster),
		Score:       entry.Score,
		Succeeded:   entry.Succeeded,
		UpdatedAt:   entry.UpdatedAt.Format(time.RFC3339),
		ExpiresAt:   entry.UpdatedAt.Add(entryTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("history: marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("history: put item: %w", err)
	}
	return nil
}

// RecordMetrics updates only the outcome fields (execution_time, cost,
// success) of an existing entry, leaving its cluster, score, and TTL
// untouched — matching §4.5's "updates outcome fields in place without
// altering the decision or extending expiration". Grounded on
// `NodeRepository.Update`'s expression.Set/NewBuilder idiom for building
// a partial DynamoDB update.
func (s *DynamoStore) RecordMetrics(ctx context.Context, fingerprint string, metrics Metrics) error {
	update := expression.Set(expression.Name("execution_time"), expression.Value(metrics.ExecutionTime)).
		Set(expression.Name("cost"), expression.Value(metrics.Cost)).
		Set(expression.Name("succeeded"), expression.Value(metrics.Succeeded))
	condition := expression.AttributeExists(expression.Name("fingerprint"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return fmt.Errorf("history: build update expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"fingerprint": &types.AttributeValueMemberS{Value: fingerprint}},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("history: update item: %w", err)
	}
	return nil
}

// HistoricalFactor derives the historical routing factor fh for a
// fingerprint: no prior entry (or a lookup failure) yields a neutral
// 0.5; a prior entry that succeeded reuses its recorded score as a
// vote of confidence toward the same cluster; a prior entry that
// failed inverts the score, pushing the next decision away from
// whatever produced the failure. A lookup failure is logged and
// treated exactly like "no entry" rather than surfaced.
func HistoricalFactor(ctx context.Context, store Store, fingerprint string, log *zap.SugaredLogger) float64 {
	entry, err := store.Lookup(ctx, fingerprint)
	if err != nil {
		log.Warnw("history lookup failed, using neutral factor", "fingerprint", fingerprint, "error", err)
		return 0.5
	}
	if entry == nil {
		return 0.5
	}
	if entry.Succeeded {
		return entry.Score
	}
	return 1 - entry.Score
}
