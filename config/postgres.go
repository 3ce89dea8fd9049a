package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter Store names holding the production database credentials.
const (
	ParamDBHost     = "/assetsearch/db/host"
	ParamDBUser     = "/assetsearch/db/user"
	ParamDBPassword = "/assetsearch/db/password"
)

// PostgresConfig defines the configuration for connecting to the development
// backend's PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ParameterGetter is the subset of the SSM client used to resolve credentials.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// DSN builds the connection string. In "prod" host, user and password come
// from SSM Parameter Store; any other env uses the configured values.
func (cfg *PostgresConfig) DSN(env string) (string, error) {
	host, user, password := cfg.Host, cfg.User, cfg.Password

	if env == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("load aws config: %w", err)
		}
		creds, err := ResolveCredentials(ctx, ssm.NewFromConfig(awsCfg))
		if err != nil {
			return "", err
		}
		host, user, password = creds[ParamDBHost], creds[ParamDBUser], creds[ParamDBPassword]
	}

	return cfg.dsn(host, user, password, cfg.DBName), nil
}

// AdminDSN points at the "postgres" maintenance database on the same server.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *PostgresConfig) dsn(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn
}

// ResolveCredentials fetches the database parameters with decryption.
func ResolveCredentials(ctx context.Context, client ParameterGetter) (map[string]string, error) {
	names := []string{ParamDBHost, ParamDBUser, ParamDBPassword}
	out := make(map[string]string, len(names))
	decrypt := true

	for _, name := range names {
		name := name
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &name,
			WithDecryption: &decrypt,
		})
		if err != nil {
			return nil, fmt.Errorf("get parameter %s: %w", name, err)
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			return nil, fmt.Errorf("parameter %s has no value", name)
		}
		out[name] = *result.Parameter.Value
	}

	return out, nil
}
