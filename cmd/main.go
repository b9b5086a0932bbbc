package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"qa-chatbot/handler"
	"qa-chatbot/internal/archive"
	"qa-chatbot/internal/config"
	"qa-chatbot/internal/integrations/gemini"
	"qa-chatbot/internal/integrations/paramstore"
	"qa-chatbot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	archiveDir := envOrDefault("ARCHIVE_DIR", "chat_logs")
	archiveTable := os.Getenv("ARCHIVE_TABLE")
	paramPrefix := os.Getenv("PARAM_PREFIX")
	defaultModel := envOrDefault("GEMINI_MODEL", "gemini-2.5-flash")
	maxPromptLen := envInt("MAX_PROMPT_LENGTH", 4000)

	// ---- AWS SDK config (loaded only when an AWS-backed piece is configured) ----
	var awsCfg aws.Config
	var awsCfgLoaded bool
	loadAWS := func() aws.Config {
		if awsCfgLoaded {
			return awsCfg
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		awsCfg = c
		awsCfgLoaded = true
		return awsCfg
	}

	// ---- API key resolution: env first, then SSM when configured ----
	sources := []config.KeySource{config.EnvSource{Name: "GEMINI_API_KEY"}}
	if paramPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(loadAWS()))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		sources = append(sources, config.ParamSource{
			Params: ssmClient,
			Name:   paramPrefix + "/gemini-api-key",
		})
	}
	keyChain, err := config.NewChain(sources...)
	if err != nil {
		slog.Error("failed to build key chain", "err", err)
		os.Exit(1)
	}

	// ---- Archive store: DynamoDB when a table is configured, files otherwise ----
	var store usecase.ArchiveStore
	if archiveTable != "" {
		dynamoStore, err := archive.NewDynamoStore(awsdynamodb.NewFromConfig(loadAWS()), archiveTable)
		if err != nil {
			slog.Error("failed to create archive store", "err", err)
			os.Exit(1)
		}
		store = dynamoStore
	} else {
		fileStore, err := archive.NewFileStore(archiveDir)
		if err != nil {
			slog.Error("failed to create archive store", "err", err)
			os.Exit(1)
		}
		store = fileStore
	}

	// ---- Clients ----
	geminiClient, err := gemini.NewClient(keyChain)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(geminiClient, store, maxPromptLen)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService, defaultModel)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func envOrDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
