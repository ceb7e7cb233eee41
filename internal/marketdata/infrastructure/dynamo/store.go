// Package dynamo stores records in DynamoDB tables keyed by record key.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// timeLayout matches how dynamodbattribute writes a UTC time.Time.
const timeLayout = time.RFC3339Nano

// Store is a DynamoDB implementation of the record store.
type Store struct {
	client dynamodbiface.DynamoDBAPI
	prefix string
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTablePrefix prepends prefix to every table name.
func WithTablePrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewClient builds a DynamoDB client from the shared AWS config. An empty
// endpoint uses the regional default.
func NewClient(region, endpoint string) (*dynamodb.DynamoDB, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return dynamodb.New(sess), nil
}

// NewStore constructs a store.
func NewStore(client dynamodbiface.DynamoDBAPI, opts ...StoreOption) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table(shape marketdata.Shape) string {
	return s.prefix + shape.Table
}

// EnsureSchema creates the table when missing and waits until it is active.
// Columns are schemaless, so migrations need no table change.
func (s *Store) EnsureSchema(ctx context.Context, shape marketdata.Shape) error {
	if s == nil || s.client == nil {
		return errors.New("dynamo store: nil client")
	}
	name := s.table(shape)
	_, err := s.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		return nil
	}
	if !isCode(err, dynamodb.ErrCodeResourceNotFoundException) {
		return fmt.Errorf("describe %s: %w", name, err)
	}

	_, err = s.client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(marketdata.ColumnRecordKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(marketdata.ColumnRecordKey), KeyType: aws.String(dynamodb.KeyTypeHash)},
		},
	})
	if err != nil && !isCode(err, dynamodb.ErrCodeResourceInUseException) {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return s.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
}

// InsertMany writes records whose key is not yet stored and returns how many were new.
func (s *Store) InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("dynamo store: nil client")
	}
	name := s.table(shape)
	inserted := 0
	for _, rec := range records {
		item, err := encode(shape, rec)
		if err != nil {
			return inserted, err
		}
		_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(name),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(#k)"),
			ExpressionAttributeNames: map[string]*string{
				"#k": aws.String(marketdata.ColumnRecordKey),
			},
		})
		if isCode(err, dynamodb.ErrCodeConditionalCheckFailedException) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("put %s: %w", name, err)
		}
		inserted++
	}
	return inserted, nil
}

// ListRecords scans the table and returns matching records ordered by interval start and zone.
func (s *Store) ListRecords(ctx context.Context, shape marketdata.Shape, query marketdata.RecordQuery) ([]marketdata.Record, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("dynamo store: nil client")
	}
	input := &dynamodb.ScanInput{TableName: aws.String(s.table(shape))}
	if filter, names, values := scanFilter(query); filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var out []marketdata.Record
	var decodeErr error
	err := s.client.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, item := range page.Items {
			rec, err := decode(shape, item)
			if err != nil {
				decodeErr = err
				return false
			}
			out = append(out, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start().Equal(out[j].Start()) {
			return out[i].Start().Before(out[j].Start())
		}
		if out[i].Zone() != out[j].Zone() {
			return out[i].Zone() < out[j].Zone()
		}
		return out[i].Key() < out[j].Key()
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func scanFilter(query marketdata.RecordQuery) (string, map[string]*string, map[string]*dynamodb.AttributeValue) {
	var filter string
	names := map[string]*string{}
	values := map[string]*dynamodb.AttributeValue{}
	and := func(cond string) {
		if filter != "" {
			filter += " AND "
		}
		filter += cond
	}
	if query.Zone != "" {
		names["#z"] = aws.String(marketdata.ColumnZone)
		values[":zone"] = &dynamodb.AttributeValue{S: aws.String(query.Zone)}
		and("#z = :zone")
	}
	if !query.From.IsZero() || !query.To.IsZero() {
		names["#s"] = aws.String(marketdata.ColumnIntervalStart)
	}
	if !query.From.IsZero() {
		values[":from"] = &dynamodb.AttributeValue{S: aws.String(query.From.UTC().Format(timeLayout))}
		and("#s >= :from")
	}
	if !query.To.IsZero() {
		values[":to"] = &dynamodb.AttributeValue{S: aws.String(query.To.UTC().Format(timeLayout))}
		and("#s < :to")
	}
	if filter == "" {
		return "", nil, nil
	}
	return filter, names, values
}

// encode marshals a record with its timestamps in UTC, so interval_start strings
// order the same way as the instants they hold.
func encode(shape marketdata.Shape, rec marketdata.Record) (map[string]*dynamodb.AttributeValue, error) {
	if rec == nil || rec.Kind() != shape.Kind {
		return nil, marketdata.ErrKindMismatch
	}
	if rec.Key() == "" {
		return nil, errors.New("dynamo store: record without key")
	}
	var item any
	switch r := rec.(type) {
	case marketdata.BalancingReserveRecord:
		r.IntervalStart, r.IntervalEnd = r.IntervalStart.UTC(), r.IntervalEnd.UTC()
		item = r
	case marketdata.DayAheadPriceRecord:
		r.IntervalStart, r.IntervalEnd = r.IntervalStart.UTC(), r.IntervalEnd.UTC()
		item = r
	default:
		return nil, fmt.Errorf("dynamo store: unsupported record %T", rec)
	}
	return dynamodbattribute.MarshalMap(item)
}

func decode(shape marketdata.Shape, item map[string]*dynamodb.AttributeValue) (marketdata.Record, error) {
	switch shape.Kind {
	case marketdata.KindBalancingReserve:
		var r marketdata.BalancingReserveRecord
		if err := dynamodbattribute.UnmarshalMap(item, &r); err != nil {
			return nil, fmt.Errorf("dynamo store: decode %s: %w", shape.Table, err)
		}
		r.IntervalStart, r.IntervalEnd = local(r.IntervalStart), local(r.IntervalEnd)
		return r, nil
	case marketdata.KindDayAheadPrice:
		var r marketdata.DayAheadPriceRecord
		if err := dynamodbattribute.UnmarshalMap(item, &r); err != nil {
			return nil, fmt.Errorf("dynamo store: decode %s: %w", shape.Table, err)
		}
		r.IntervalStart, r.IntervalEnd = local(r.IntervalStart), local(r.IntervalEnd)
		return r, nil
	}
	return nil, marketdata.ErrUnknownDocumentKind
}

func local(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(marketdata.TargetLocation())
}

func isCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
