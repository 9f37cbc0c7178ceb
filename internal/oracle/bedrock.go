package oracle

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockProvider adapts AWS Bedrock's Converse API to Provider, using the
// blocking Converse call rather than the teacher's ConverseStream, since
// decide() needs one finished message.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockCredential identifies the AWS credentials and region for a Bedrock
// entry in the oracle's credential ring. AWS access keys are distinct from
// the single-string API keys the other three providers use, so Bedrock gets
// its own credential shape rather than overloading Credential.APIKey.
type BedrockCredential struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// NewBedrockProvider constructs a provider bound to one set of AWS credentials.
func NewBedrockProvider(cred BedrockCredential) (*BedrockProvider, error) {
	region := cred.Region
	if region == "" {
		region = "us-east-1"
	}
	defaultModel := cred.DefaultModel
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cred.AccessKeyID != "" && cred.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("oracle: bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	resp, err := p.client.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("oracle: bedrock model=%s: %w", model, err)
	}

	out, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("oracle: bedrock model=%s: unexpected output shape", model)
	}

	var text string
	for _, block := range out.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	return text, nil
}
