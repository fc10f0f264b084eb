package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/idxdeploy/model"
)

// ErrAlreadyPublished is returned by Publish when the version was committed before.
var ErrAlreadyPublished = errors.New("version already published")

// DDBClient is the subset of the DynamoDB API used by DynamoGate.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// DynamoGate waits until the commit table holds a version >= the target.
type DynamoGate struct {
	client    DDBClient
	tableName string
	baseURI   string // partition key, usually the raw partition path
	interval  time.Duration
	logger    *slog.Logger
}

var _ Gate = (*DynamoGate)(nil)

// DynamoOption configures a DynamoGate.
type DynamoOption func(*DynamoGate)

// WithDynamoInterval sets the poll interval.
func WithDynamoInterval(d time.Duration) DynamoOption {
	return func(g *DynamoGate) { g.interval = d }
}

// WithDynamoLogger sets the logger.
func WithDynamoLogger(l *slog.Logger) DynamoOption {
	return func(g *DynamoGate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewDynamoGate creates a gate over tableName for the partition baseURI.
func NewDynamoGate(client DDBClient, tableName, baseURI string, optFns ...DynamoOption) *DynamoGate {
	g := &DynamoGate{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
		interval:  DefaultPollInterval,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(g)
	}
	return g
}

// Wait blocks until version, or a later one, was committed.
func (g *DynamoGate) Wait(ctx context.Context, version model.VersionID) error {
	return poll(ctx, g.interval, func(ctx context.Context) (bool, error) {
		latest, err := g.LatestVersion(ctx)
		if err != nil {
			return false, err
		}
		if latest < version {
			g.logger.DebugContext(ctx, "version not yet published",
				slog.String("base_uri", g.baseURI),
				slog.Int64("latest", int64(latest)),
				slog.Int64("want", int64(version)))
			return false, nil
		}
		return true, nil
	})
}

// LatestVersion returns the newest committed version, or model.InvalidVersion
// if none was committed.
func (g *DynamoGate) LatestVersion(ctx context.Context) (model.VersionID, error) {
	resp, err := g.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(g.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: g.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return model.InvalidVersion, fmt.Errorf("query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return model.InvalidVersion, nil
	}

	attr, ok := resp.Items[0]["version"].(*types.AttributeValueMemberN)
	if !ok {
		return model.InvalidVersion, errors.New("invalid version attribute in commit table")
	}
	v, err := strconv.ParseInt(attr.Value, 10, 32)
	if err != nil {
		return model.InvalidVersion, fmt.Errorf("parse version: %w", err)
	}
	return model.VersionID(v), nil
}

// Publish commits version for the partition. Publishers call it after the
// version file and its data are durable.
func (g *DynamoGate) Publish(ctx context.Context, version model.VersionID) error {
	_, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: g.baseURI},
			"version":      &types.AttributeValueMemberN{Value: version.String()},
			"published_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %d", ErrAlreadyPublished, version)
		}
		return fmt.Errorf("publish version %d: %w", version, err)
	}
	return nil
}
