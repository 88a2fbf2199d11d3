package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrStoreUnavailable wraps failures of the metadata store itself
// (network, throttling, service errors) as opposed to domain outcomes.
var ErrStoreUnavailable = errors.New("content store unavailable")

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepository.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoConfig holds the configuration for the DynamoDB client.
type DynamoConfig struct {
	Region          string
	Endpoint        string // Optional: DynamoDB Local / LocalStack
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// NewDynamoClient builds a DynamoDB client from cfg.
func NewDynamoClient(cfg DynamoConfig) (*dynamodb.Client, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return dynamodb.NewFromConfig(awsCfg, clientOpts...), nil
}

// Compile-time check that DynamoRepository implements Repository.
var _ Repository = (*DynamoRepository)(nil)

// DynamoRepository stores items in a DynamoDB table keyed by "id".
// The attribute layout matches the table written by the web frontend.
type DynamoRepository struct {
	client DynamoAPI
	table  string
}

// NewDynamoRepository creates a repository over table.
func NewDynamoRepository(client DynamoAPI, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

// Create puts the item unless its ID already exists.
func (r *DynamoRepository) Create(ctx context.Context, item *Item) error {
	av, err := attributevalue.MarshalMap(toRecord(item))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: put item: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID reads an item with strong consistency.
func (r *DynamoRepository) FindByID(ctx context.Context, id string) (*Item, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %w", ErrStoreUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec itemRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item %s: %w", id, err)
	}
	return rec.toItem(), nil
}

// List scans the whole table. Only suitable for small catalogs.
func (r *DynamoRepository) List(ctx context.Context) ([]*Item, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})

	items := make([]*Item, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStoreUnavailable, err)
		}

		var recs []itemRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}
		for i := range recs {
			items = append(items, recs[i].toItem())
		}
	}
	return items, nil
}

// Update sets every descriptive and asset attribute. Status is left alone.
func (r *DynamoRepository) Update(ctx context.Context, item *Item) error {
	rec := toRecord(item)
	update := expression.
		Set(expression.Name("title"), expression.Value(rec.Title)).
		Set(expression.Name("description"), expression.Value(rec.Description)).
		Set(expression.Name("genres"), expression.Value(rec.Genres)).
		Set(expression.Name("contentType"), expression.Value(rec.ContentType)).
		Set(expression.Name("imgSrc"), expression.Value(rec.ImgSrc)).
		Set(expression.Name("backdropSrc"), expression.Value(rec.BackdropSrc)).
		Set(expression.Name("trailerSrc"), expression.Value(rec.TrailerSrc)).
		Set(expression.Name("mainSrc"), expression.Value(rec.MainSrc)).
		Set(expression.Name("topCast"), expression.Value(rec.TopCast)).
		Set(expression.Name("updatedAt"), expression.Value(formatTime(time.Now())))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       itemKey(item.ID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: update item: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// SetStatus writes the new status under a condition on the current one.
// On a failed condition the old item is returned by DynamoDB, which tells
// a missing item apart from a status mismatch.
func (r *DynamoRepository) SetStatus(ctx context.Context, id string, to Status, from ...Status) error {
	if len(from) == 0 {
		return fmt.Errorf("set status %s: no source states given", to)
	}

	others := make([]expression.OperandBuilder, 0, len(from)-1)
	for _, s := range from[1:] {
		others = append(others, expression.Value(string(s)))
	}
	cond := expression.AttributeExists(expression.Name("id")).
		And(expression.Name("status").In(expression.Value(string(from[0])), others...))

	update := expression.
		Set(expression.Name("status"), expression.Value(string(to))).
		Set(expression.Name("updatedAt"), expression.Value(formatTime(time.Now())))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.table),
		Key:                                 itemKey(id),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			return ErrStatusConflict
		}
		return fmt.Errorf("%w: update status: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the item, failing with ErrNotFound when it is absent.
func (r *DynamoRepository) Delete(ctx context.Context, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.table),
		Key:                      itemKey(id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: delete item: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// itemRecord is the table layout of an Item.
type itemRecord struct {
	ID          string       `dynamodbav:"id"`
	Title       string       `dynamodbav:"title"`
	Description string       `dynamodbav:"description"`
	Genres      []string     `dynamodbav:"genres"`
	ContentType string       `dynamodbav:"contentType"`
	Status      string       `dynamodbav:"status"`
	ImgSrc      string       `dynamodbav:"imgSrc,omitempty"`
	BackdropSrc string       `dynamodbav:"backdropSrc,omitempty"`
	TrailerSrc  string       `dynamodbav:"trailerSrc,omitempty"`
	MainSrc     mainSource   `dynamodbav:"mainSrc"`
	TopCast     []castRecord `dynamodbav:"topCast"`
	CreatedAt   string       `dynamodbav:"createdAt,omitempty"`
	UpdatedAt   string       `dynamodbav:"updatedAt,omitempty"`
}

type castRecord struct {
	Name   string `dynamodbav:"name"`
	ImgSrc string `dynamodbav:"imgSrc"`
}

func toRecord(item *Item) itemRecord {
	cast := make([]castRecord, 0, len(item.Cast))
	for _, c := range item.Cast {
		cast = append(cast, castRecord{Name: c.Name, ImgSrc: c.PictureKey})
	}
	genres := item.Genres
	if genres == nil {
		genres = []string{}
	}
	return itemRecord{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Genres:      genres,
		ContentType: string(item.Kind),
		Status:      string(item.Status),
		ImgSrc:      item.PosterKey,
		BackdropSrc: item.BackdropKey,
		TrailerSrc:  item.TrailerKey,
		MainSrc:     mainSource{keys: item.MainKeys, list: item.Kind == KindSeries},
		TopCast:     cast,
		CreatedAt:   formatTime(item.CreatedAt),
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
}

func (rec *itemRecord) toItem() *Item {
	cast := make([]CastMember, 0, len(rec.TopCast))
	for _, c := range rec.TopCast {
		cast = append(cast, CastMember{Name: c.Name, PictureKey: c.ImgSrc})
	}
	genres := rec.Genres
	if genres == nil {
		genres = []string{}
	}
	keys := rec.MainSrc.keys
	if keys == nil {
		keys = []string{}
	}
	return &Item{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Genres:      genres,
		Kind:        Kind(rec.ContentType),
		Status:      Status(rec.Status),
		PosterKey:   rec.ImgSrc,
		BackdropKey: rec.BackdropSrc,
		TrailerKey:  rec.TrailerSrc,
		MainKeys:    keys,
		Cast:        cast,
		CreatedAt:   parseTime(rec.CreatedAt),
		UpdatedAt:   parseTime(rec.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mainSource is stored as a string for movies and as a list for series.
type mainSource struct {
	keys []string
	list bool
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (m mainSource) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if m.list {
		values := make([]types.AttributeValue, 0, len(m.keys))
		for _, k := range m.keys {
			values = append(values, &types.AttributeValueMemberS{Value: k})
		}
		return &types.AttributeValueMemberL{Value: values}, nil
	}
	if len(m.keys) == 0 {
		return &types.AttributeValueMemberS{Value: ""}, nil
	}
	return &types.AttributeValueMemberS{Value: m.keys[0]}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (m *mainSource) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		m.list = false
		m.keys = nil
		if v.Value != "" {
			m.keys = []string{v.Value}
		}
	case *types.AttributeValueMemberL:
		m.list = true
		m.keys = make([]string, 0, len(v.Value))
		for _, e := range v.Value {
			s, ok := e.(*types.AttributeValueMemberS)
			if !ok {
				return fmt.Errorf("mainSrc: unexpected list element %T", e)
			}
			m.keys = append(m.keys, s.Value)
		}
	case *types.AttributeValueMemberSS:
		m.list = true
		m.keys = append([]string(nil), v.Value...)
	case *types.AttributeValueMemberNULL:
		m.keys = nil
	default:
		return fmt.Errorf("mainSrc: unexpected attribute type %T", av)
	}
	return nil
}
