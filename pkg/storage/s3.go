// Package storage выгружает файлы заданий (дампы, выгрузки запросов) в
// S3-совместимое хранилище.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultRegion регион, если он не задан ни в конфиге, ни в окружении
const DefaultRegion = "us-east-1"

// Config параметры S3
type Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`   // префикс ключа, например "dumps/nightly"
	Region       string `yaml:"region"`   // пусто - из окружения или DefaultRegion
	Endpoint     string `yaml:"endpoint"` // MinIO и прочие S3-совместимые хранилища
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	SessionToken string `yaml:"session_token"`
	PathStyle    bool   `yaml:"path_style"`
	PartSizeMB   int64  `yaml:"part_size_mb"` // размер части multipart загрузки; 0 - по умолчанию SDK
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("s3 access_key and secret_key must be set together")
	}
	return nil
}

// Object загруженный объект
type Object struct {
	Bucket   string
	Key      string
	Location string
	Size     int64
}

// Uploader загружает файлы в один bucket
type Uploader struct {
	cfg      Config
	uploader *manager.Uploader
}

// New создает Uploader. Учетные данные из конфига имеют приоритет над
// стандартной цепочкой AWS (переменные окружения, ~/.aws, роль).
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-совместимые хранилища не всегда понимают контрольные суммы CRC
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
		o.UsePathStyle = cfg.PathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSizeMB > 0 {
			u.PartSize = cfg.PartSizeMB * 1024 * 1024
		}
	})
	return &Uploader{cfg: cfg, uploader: uploader}, nil
}

// Key ключ объекта для имени файла с учетом префикса
func (u *Uploader) Key(name string) string {
	prefix := strings.Trim(u.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// UploadFile загружает файл под ключом Key(имя файла). metadata попадает
// в x-amz-meta-* заголовки.
func (u *Uploader) UploadFile(ctx context.Context, filePath string, metadata map[string]string) (Object, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Object{}, err
	}

	key := u.Key(filepath.Base(filePath))
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(filePath)),
		Metadata:    metadata,
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s to s3://%s/%s: %w", filePath, u.cfg.Bucket, key, err)
	}

	log.Info().Str("bucket", u.cfg.Bucket).Str("key", key).Int64("size", st.Size()).Msg("uploaded")
	return Object{Bucket: u.cfg.Bucket, Key: key, Location: out.Location, Size: st.Size()}, nil
}

var contentTypes = map[string]string{
	".gz":   "application/gzip",
	".zst":  "application/zstd",
	".sql":  "application/sql",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentType тип содержимого по расширению файла
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
