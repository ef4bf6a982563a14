package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadastral/tiler/tileerr"
)

type fakeS3 struct {
	s3iface.S3API
	mu   sync.Mutex
	puts []*s3.PutObjectInput
	body map[string][]byte
	err  error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	if f.body == nil {
		f.body = map[string][]byte{}
	}
	f.body[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3PutTile(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3WithClient(fake, "plss-tiles", 0)

	require.NoError(t, s.Put(context.Background(), TileObject("tiles/3/5/5.pbf", []byte{0x1f, 0x8b})))
	require.Len(t, fake.puts, 1)
	in := fake.puts[0]
	assert.Equal(t, "plss-tiles", aws.StringValue(in.Bucket))
	assert.Equal(t, "tiles/3/5/5.pbf", aws.StringValue(in.Key))
	assert.Equal(t, "application/x-protobuf", aws.StringValue(in.ContentType))
	assert.Equal(t, "gzip", aws.StringValue(in.ContentEncoding))
	assert.Equal(t, "public, max-age=31536000", aws.StringValue(in.CacheControl))
	assert.Equal(t, int64(2), aws.Int64Value(in.ContentLength))
	assert.Equal(t, []byte{0x1f, 0x8b}, fake.body["tiles/3/5/5.pbf"])
}

func TestS3PutMetadataHasNoEncoding(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3WithClient(fake, "b", 0)
	require.NoError(t, s.Put(context.Background(), MetadataObject("metadata.json", []byte("{}"))))
	in := fake.puts[0]
	assert.Nil(t, in.ContentEncoding)
	assert.Equal(t, "application/json", aws.StringValue(in.ContentType))
	assert.Equal(t, "public, max-age=86400", aws.StringValue(in.CacheControl))
}

func TestS3PutFailure(t *testing.T) {
	fake := &fakeS3{err: awserr.New("AccessDenied", "denied", nil)}
	s := NewS3WithClient(fake, "b", 0)
	err := s.Put(context.Background(), TileObject("tiles/0/0/0.pbf", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tileerr.ErrSinkWriteFailure))
	assert.Contains(t, err.Error(), "s3://b/tiles/0/0/0.pbf")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.Error(t, err)
}

func TestDirPut(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Put(context.Background(), TileObject("tiles/1/0/1.pbf", []byte("abc"))))
	got, err := os.ReadFile(filepath.Join(d.Root(), "tiles", "1", "0", "1.pbf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	// overwrite is idempotent
	require.NoError(t, d.Put(context.Background(), TileObject("tiles/1/0/1.pbf", []byte("abc"))))
}

func TestDirRejectsEscape(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	err = d.Put(context.Background(), TileObject("../evil.pbf", nil))
	assert.True(t, errors.Is(err, tileerr.ErrSinkWriteFailure))
}
