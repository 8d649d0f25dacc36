package lib

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var (
	awsConfig      *aws.Config
	sqsClient      *sqs.Client
	snsClient      *sns.Client
	secretsClient  *secretsmanager.Client

	queueURLsMu sync.Mutex
	queueURLs   = map[string]string{}
)

// awsGetSdkConfig loads the default credential chain, assuming
// AWS_IAM_ROLE_ARN when it is set.
func awsGetSdkConfig(ctx context.Context) (*aws.Config, error) {
	if awsConfig != nil {
		return awsConfig, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil, err
	}
	if iamRole := os.Getenv("AWS_IAM_ROLE_ARN"); iamRole != "" {
		stsClient := sts.NewFromConfig(cfg)
		output, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
			RoleArn:         aws.String(iamRole),
			RoleSessionName: aws.String("bookpay"),
		})
		if err != nil {
			log.Printf("Error configuring STS client: %s\n", err.Error())
			return nil, err
		}
		creds := output.Credentials
		cfg, err = config.LoadDefaultConfig(ctx, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(*creds.AccessKeyId, *creds.SecretAccessKey, *creds.SessionToken),
		))
		if err != nil {
			log.Printf("Error configuration: %s\n", err.Error())
			return nil, err
		}
	}
	awsConfig = &cfg
	return awsConfig, nil
}

func AWSGetSQSClient(ctx context.Context) (*sqs.Client, error) {
	if sqsClient != nil {
		return sqsClient, nil
	}
	cfg, err := awsGetSdkConfig(ctx)
	if err != nil {
		log.Printf("Failed to initialize SQS client: %s\n", err.Error())
		return nil, err
	}
	sqsClient = sqs.NewFromConfig(*cfg)
	return sqsClient, nil
}

func AWSGetSNSClient(ctx context.Context) (*sns.Client, error) {
	if snsClient != nil {
		return snsClient, nil
	}
	cfg, err := awsGetSdkConfig(ctx)
	if err != nil {
		log.Printf("Failed to initialize SNS client: %s\n", err.Error())
		return nil, err
	}
	snsClient = sns.NewFromConfig(*cfg)
	return snsClient, nil
}

func AWSGetSecretsManagerClient(ctx context.Context) (*secretsmanager.Client, error) {
	if secretsClient != nil {
		return secretsClient, nil
	}
	cfg, err := awsGetSdkConfig(ctx)
	if err != nil {
		log.Printf("Failed to initialize Secrets Manager client: %s\n", err.Error())
		return nil, err
	}
	secretsClient = secretsmanager.NewFromConfig(*cfg)
	return secretsClient, nil
}

// SQSAPI is the part of the SQS client the mail queue needs.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSProduceMessage sends body to the named queue.
func SQSProduceMessage(ctx context.Context, client SQSAPI, queue, body string) error {
	queueURLsMu.Lock()
	qurl, ok := queueURLs[queue]
	queueURLsMu.Unlock()
	if !ok {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(queue),
		})
		if err != nil {
			return fmt.Errorf("failed to retrieve queue URL for %s: %w", queue, err)
		}
		qurl = aws.ToString(out.QueueUrl)
		queueURLsMu.Lock()
		queueURLs[queue] = qurl
		queueURLsMu.Unlock()
	}
	if _, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(qurl),
		MessageBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", queue, err)
	}
	return nil
}

// SNSAPI is the part of the SNS client activity tracking needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublish publishes message to topicArn with string attributes.
func SNSPublish(ctx context.Context, client SNSAPI, topicArn, message string, attrs map[string]string) (string, error) {
	input := &sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Message:  aws.String(message),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]snstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = snstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	out, err := client.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}
