package s3infra

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func TestStore_Upload(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "licenses-bucket" &&
			aws.ToString(in.Key) == "licenses/abc.pdf" &&
			aws.ToString(in.ContentType) == "application/pdf" &&
			aws.ToInt64(in.ContentLength) == 4 &&
			string(body) == "%PDF"
	})).Return(&s3.PutObjectOutput{}, nil)

	store := NewStore(client, "licenses-bucket")
	require.NoError(t, store.Upload(context.Background(), "licenses/abc.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))
	client.AssertExpectations(t)
}

func TestStore_Upload_Error(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	store := NewStore(client, "b")
	err := store.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
	assert.ErrorContains(t, err, "s3 put object")
}

func TestStore_Delete(t *testing.T) {
	client := &mockS3{}
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "licenses/abc.pdf"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	store := NewStore(client, "b")
	require.NoError(t, store.Delete(context.Background(), "licenses/abc.pdf"))
	client.AssertExpectations(t)
}
