package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/api/http"
	"github.com/EternisAI/zone-orchestrator/internal/db"
	"github.com/EternisAI/zone-orchestrator/internal/okta"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/workflow"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	STATE_BACKEND_FILE     = "file"
	STATE_BACKEND_POSTGRES = "postgres"
)

type Config struct {
	Log       LogConfig
	Http      http.Config
	State     StateConfig
	DB        db.Config
	Jenkins   pipeline.Config
	AWS       AWSConfig
	Poll      PollConfig
	Okta      okta.Config
	Workbench workflow.WorkbenchConfig
}

type StateConfig struct {
	Path    string `mapstructure:"path"`
	Backend string `mapstructure:"backend"`
}

type AWSConfig struct {
	Region          string        `mapstructure:"region"`
	UseAssumedRoles bool          `mapstructure:"use_assumed_roles"`
	CredentialTTL   time.Duration `mapstructure:"credential_ttl"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var config Config

func setDefaults() {
	viper.SetDefault("log.level", LOG_LEVEL_INFO)
	viper.SetDefault("log.format", LOG_FORMAT_TEXT)
	viper.SetDefault("log.product", "intelligence-portal")
	viper.SetDefault("log.service", "partner-creation")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.admin_api_key", "")
	viper.SetDefault("state.path", "./state")
	viper.SetDefault("state.backend", STATE_BACKEND_FILE)
	viper.SetDefault("db.url", "")
	viper.SetDefault("db.schema", "")
	viper.SetDefault("jenkins.url", "")
	viper.SetDefault("jenkins.username", "")
	viper.SetDefault("jenkins.token", "")
	viper.SetDefault("jenkins.token_secret_arn", "")
	viper.SetDefault("jenkins.pipeline_name", "")
	viper.SetDefault("aws.region", "us-east-1")
	viper.SetDefault("aws.use_assumed_roles", false)
	viper.SetDefault("aws.credential_ttl", "7200s")
	viper.SetDefault("poll.interval", "10s")
	viper.SetDefault("poll.timeout", "300s")
	viper.SetDefault("okta.enabled", false)
	viper.SetDefault("okta.domain", "")
	viper.SetDefault("okta.client_id", "")
	viper.SetDefault("okta.private_key", "")
	viper.SetDefault("workbench.authorized_keys_configmap", "")
	viper.SetDefault("workbench.authorized_keys_namespace", "s3-sftp-server")
	viper.SetDefault("workbench.sftp_pod_selector", "")
}

func InitConfig() {
	var err error

	_ = godotenv.Load()

	setDefaults()
	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/zone-orchestrator")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log, config.AWS.Region)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(redacted(config), "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

func redacted(c Config) Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Http.AdminAPIKey = mask(c.Http.AdminAPIKey)
	c.DB.Url = mask(c.DB.Url)
	c.Jenkins.Token = mask(c.Jenkins.Token)
	c.Okta.PrivateKey = mask(c.Okta.PrivateKey)
	return c
}

type jenkinsSecret struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// loadJenkinsSecret fills the Jenkins credentials from Secrets Manager.
// Values already present in the config win.
func loadJenkinsSecret(ctx context.Context, client secretsAPI, cfg *pipeline.Config) error {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.TokenSecretARN),
	})
	if err != nil {
		return fmt.Errorf("get jenkins secret: %w", err)
	}

	var secret jenkinsSecret
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &secret); err != nil {
		return fmt.Errorf("decode jenkins secret: %w", err)
	}

	if cfg.Username == "" {
		cfg.Username = secret.Username
	}
	if cfg.Token == "" {
		cfg.Token = secret.Token
	}
	return nil
}
