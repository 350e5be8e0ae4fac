package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ct-go/internal/config"
)

// fakeS3 is an in-memory bucket implementing S3API. Snapshots are small,
// so only single-part uploads are supported.
type fakeS3 struct {
	bucket string

	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.metadata[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), Metadata: f.metadata[key]}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

var errMultipart = errors.New("multipart uploads not supported by fake")

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func TestS3Vault_KeyLayout(t *testing.T) {
	fake := newFakeS3("bucket")
	v := NewS3Vault("cloud", "bucket", "backups/ct", fake)

	if err := v.PutSnapshot("host-1", bytes.NewReader([]byte("db")), 2, 5); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}
	meta, ok := fake.metadata["backups/ct/snapshots/host-1.db"]
	if !ok {
		t.Fatalf("object keys = %v, want backups/ct/snapshots/host-1.db", fake.objects)
	}
	if meta[generationKey] != "5" {
		t.Errorf("generation metadata = %q, want 5", meta[generationKey])
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	v := NewS3Vault("cloud", "missing", "", newFakeS3("bucket"))
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for a missing bucket")
	}
}

func TestNewS3VaultFromConfig(t *testing.T) {
	t.Run("requires bucket", func(t *testing.T) {
		if _, err := NewS3VaultFromConfig(context.Background(), config.VaultConfig{Type: "s3", Name: "x"}); err == nil {
			t.Error("NewS3VaultFromConfig() expected error without bucket")
		}
	})

	t.Run("builds client with static credentials", func(t *testing.T) {
		v, err := NewS3VaultFromConfig(context.Background(), config.VaultConfig{
			Type:              "s3",
			Name:              "minio",
			S3Bucket:          "photos",
			S3Region:          "us-east-1",
			S3Endpoint:        "http://localhost:9000",
			S3AccessKeyID:     "minioadmin",
			S3SecretAccessKey: "minioadmin",
		})
		if err != nil {
			t.Fatalf("NewS3VaultFromConfig() error = %v", err)
		}
		if v.bucket != "photos" || v.name != "minio" {
			t.Errorf("vault = %+v", v)
		}
	})
}
