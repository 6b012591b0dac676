package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/docvault/internal/config"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "blobs/*/ab/abcdef", strings.NewReader("hello"), 5, "text/plain"))

	ok, err := s.Exists(ctx, "blobs/*/ab/abcdef")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, "blobs/*/ab/abcdef")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, "blobs/*/ab/abcdef"))
	require.NoError(t, s.Delete(ctx, "blobs/*/ab/abcdef"), "deleting twice is fine")

	_, err = s.Open(ctx, "blobs/*/ab/abcdef")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "/abs", "..", ""} {
		assert.Error(t, s.Save(context.Background(), key, strings.NewReader("x"), 1, ""), key)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestLocalStorage_FailedSaveLeavesNothing(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	err = s.Save(context.Background(), "a/b", failingReader{}, 10, "")
	require.Error(t, err)

	ok, err := s.Exists(context.Background(), "a/b")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp file left behind")
}

func TestStaging_DiscardRemovesFile(t *testing.T) {
	st, err := NewStaging(t.TempDir())
	require.NoError(t, err)

	sf, err := st.Create()
	require.NoError(t, err)
	_, err = sf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sf.Size())

	r, err := sf.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	name := sf.Name()
	sf.Discard()
	sf.Discard()
	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Storage_WithFakeClient(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := NewS3StorageWithClient(fake, "docvault")
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", strings.NewReader("data"), 4, "text/plain"))
	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(data))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Open(ctx, "k")
	require.ErrorIs(t, err, ErrObjectNotFound)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.putErr = errors.New("503 slow down")
	require.Error(t, s.Save(ctx, "k2", strings.NewReader("x"), 1, ""))

	_, err = s.PresignedURL(ctx, "k", 0)
	require.Error(t, err, "client-only storage cannot presign")
}

func TestNew_LocalDriver(t *testing.T) {
	s, err := New(&config.Config{StorageDriver: config.StorageDriverLocal, StoragePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(&config.Config{StorageDriver: "ftp"})
	require.Error(t, err)
}
