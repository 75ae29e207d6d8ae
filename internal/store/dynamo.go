package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/models"
)

// DynamoUsers persists user records in a DynamoDB table keyed by username
type DynamoUsers struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

// NewDynamoUsers creates a DynamoDB-backed user store
func NewDynamoUsers(client *dynamodb.Client, tableName string, logger *logrus.Logger) *DynamoUsers {
	return &DynamoUsers{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (s *DynamoUsers) Find(ctx context.Context, username string) (*models.User, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"username": &types.AttributeValueMemberS{Value: username},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}

	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}

	return &user, nil
}

func (s *DynamoUsers) Insert(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(username)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item failed: %w", err)
	}

	return nil
}

func (s *DynamoUsers) List(ctx context.Context) ([]models.User, error) {
	var users []models.User

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		var pageUsers []models.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageUsers); err != nil {
			return nil, fmt.Errorf("unmarshal failed: %w", err)
		}
		users = append(users, pageUsers...)
	}

	return users, nil
}

func (s *DynamoUsers) Delete(ctx context.Context, username string) error {
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"username": &types.AttributeValueMemberS{Value: username},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete item failed: %w", err)
	}

	if len(result.Attributes) == 0 {
		return ErrNotFound
	}

	return nil
}

// DynamoContainers records user-created containers in a DynamoDB table
// keyed by username and container name
type DynamoContainers struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

// NewDynamoContainers creates a DynamoDB-backed container ledger
func NewDynamoContainers(client *dynamodb.Client, tableName string, logger *logrus.Logger) *DynamoContainers {
	return &DynamoContainers{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (s *DynamoContainers) Record(ctx context.Context, entry models.UserContainer) error {
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item failed: %w", err)
	}

	return nil
}

func (s *DynamoContainers) ListByUser(ctx context.Context, username string) ([]models.UserContainer, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("username = :username"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":username": &types.AttributeValueMemberS{Value: username},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var entries []models.UserContainer
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}

	return entries, nil
}

func (s *DynamoContainers) ListAll(ctx context.Context) ([]models.UserContainer, error) {
	var entries []models.UserContainer

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		var pageEntries []models.UserContainer
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageEntries); err != nil {
			return nil, fmt.Errorf("unmarshal failed: %w", err)
		}
		entries = append(entries, pageEntries...)
	}

	return entries, nil
}
