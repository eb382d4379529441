package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-filler/internal/pdftk"
	"github.com/a3tai/pdf-filler/internal/storage"
	"github.com/a3tai/pdf-filler/internal/testsupport"
)

type recordingStorage struct {
	inputs []storage.StoreInput
	bodies [][]byte
	url    string
	err    error
}

func (r *recordingStorage) Store(_ context.Context, in storage.StoreInput) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", err
	}
	r.inputs = append(r.inputs, in)
	r.bodies = append(r.bodies, body)
	return r.url, nil
}

func newTestService(t *testing.T, tool FormTool, store storage.Storage, mutate ...func(*Options)) (*Service, string) {
	t.Helper()

	dir := t.TempDir()
	testsupport.WritePDF(t, dir, "forms/sample.pdf", 1)

	opts := Options{Directory: dir, MaxFileSize: 10 * 1024 * 1024}
	for _, m := range mutate {
		m(&opts)
	}

	svc, err := NewService(tool, store, opts, nil)
	require.NoError(t, err)
	return svc, dir
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, nil, Options{Directory: t.TempDir(), MaxFileSize: 1}, nil)
	assert.Error(t, err)

	_, err = NewService(&testsupport.FakeTool{}, nil, Options{Directory: t.TempDir()}, nil)
	assert.Error(t, err)

	_, err = NewService(&testsupport.FakeTool{}, nil, Options{MaxFileSize: 1}, nil)
	assert.Error(t, err)

	svc, err := NewService(&testsupport.FakeTool{}, nil, Options{Directory: t.TempDir(), MaxFileSize: 1024}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), svc.GetMaxFileSize())
	assert.False(t, svc.StorageEnabled())
}

func TestService_Fill(t *testing.T) {
	tool := &testsupport.FakeTool{}
	svc, dir := newTestService(t, tool, nil)

	result, err := svc.Fill(context.Background(), FillRequest{
		Source: "./forms/sample.pdf",
		Values: map[string]string{
			"Name_Last": "_MYGOV_FILLABLE_",
			"100,100,1": "_MYGOV_NON_FILLABLE_",
			"topmostSubform%5B0%5D.Page5%5B0%5D.firstname%5B0%5D": "Jane",
		},
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF-")))
	assert.Equal(t, len(result.Data), result.Size)
	assert.Equal(t, 2, result.FieldCount)
	assert.Equal(t, 1, result.Placements)

	require.Len(t, tool.FillCalls, 1)
	call := tool.FillCalls[0]
	assert.Equal(t, filepath.Join(dir, "forms", "sample.pdf"), call.Input)
	assert.Equal(t, map[string]string{
		"Name_Last":                               "_MYGOV_FILLABLE_",
		"topmostSubform[0].Page5[0].firstname[0]": "Jane",
	}, call.Fields)
}

func TestService_FillWithoutValues(t *testing.T) {
	tool := &testsupport.FakeTool{}
	svc, _ := newTestService(t, tool, nil)

	result, err := svc.Fill(context.Background(), FillRequest{Source: "forms/sample.pdf"})
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "%PDF-")
	assert.Empty(t, tool.FillCalls[0].Fields)
}

func TestService_FillOptionsAndCompression(t *testing.T) {
	tool := &testsupport.FakeTool{}
	svc, _ := newTestService(t, tool, nil, func(o *Options) {
		o.Fill = pdftk.FillOptions{Flatten: true}
		o.CompressOutput = true
	})

	_, err := svc.Fill(context.Background(), FillRequest{Source: "forms/sample.pdf"})
	require.NoError(t, err)

	assert.True(t, tool.FillCalls[0].Opts.Flatten)
	require.Len(t, tool.CompressCalls, 1)
	assert.NoFileExists(t, tool.CompressCalls[0], "compression input must be removed")
}

func TestService_FillErrors(t *testing.T) {
	tool := &testsupport.FakeTool{}
	svc, _ := newTestService(t, tool, nil)

	_, err := svc.Fill(context.Background(), FillRequest{})
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = svc.Fill(context.Background(), FillRequest{Source: "forms/missing.pdf"})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = svc.Fill(context.Background(), FillRequest{Source: "/etc/hosts"})
	assert.ErrorIs(t, err, ErrSourceOutsideDirectory)

	tool.FillErr = &pdftk.ToolError{Args: []string{"fill_form"}, ExitCode: 1, Err: errors.New("boom")}
	_, err = svc.Fill(context.Background(), FillRequest{Source: "forms/sample.pdf"})
	var toolErr *pdftk.ToolError
	assert.True(t, errors.As(err, &toolErr))
}

func TestService_FillOutputLargerThanInputLimit(t *testing.T) {
	tool := &testsupport.FakeTool{}
	input := testsupport.MinimalPDF(1, "forms/sample.pdf")
	svc, _ := newTestService(t, tool, nil, func(o *Options) {
		o.MaxFileSize = int64(len(input)) + 50
	})

	result, err := svc.Fill(context.Background(), FillRequest{
		Source: "forms/sample.pdf",
		Values: map[string]string{"Comments": strings.Repeat("x", 200)},
	})
	require.NoError(t, err)
	assert.Greater(t, int64(result.Size), svc.GetMaxFileSize())
}

func TestService_FillUnreadableOutput(t *testing.T) {
	tool := &testsupport.FakeTool{FillOutput: []byte("%PDF-1.4 truncated")}
	svc, _ := newTestService(t, tool, nil)

	_, err := svc.Fill(context.Background(), FillRequest{Source: "forms/sample.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.Contains(t, err.Error(), "unreadable document")
}

func TestService_Fields(t *testing.T) {
	tool := &testsupport.FakeTool{FieldList: testsupport.SampleFields()}
	svc, _ := newTestService(t, tool, nil)

	result, err := svc.Fields(context.Background(), FieldsRequest{Source: "forms/sample.pdf"})
	require.NoError(t, err)
	assert.Equal(t, testsupport.SampleFields(), result.Fields)

	tool.FieldList = nil
	result, err = svc.Fields(context.Background(), FieldsRequest{Source: "forms/sample.pdf"})
	require.NoError(t, err)
	assert.NotNil(t, result.Fields)
	assert.Empty(t, result.Fields)
}

func TestService_Store(t *testing.T) {
	tool := &testsupport.FakeTool{}
	store := &recordingStorage{url: "http://test/some/path/test.pdf"}
	svc, _ := newTestService(t, tool, store)
	assert.True(t, svc.StorageEnabled())

	result, err := svc.Store(context.Background(), StoreRequest{
		FillRequest: FillRequest{
			Source: "forms/sample.pdf",
			Values: map[string]string{"Name_Last": "_MYGOV_FILLABLE_"},
		},
		Bucket: "test",
		Path:   "some/path/for/file",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://test/some/path/test.pdf", result.URL)

	require.Len(t, store.inputs, 1)
	assert.Equal(t, "test", store.inputs[0].Bucket)
	assert.Equal(t, "some/path/for/file", store.inputs[0].Path)
	assert.Equal(t, storage.ContentTypePDF, store.inputs[0].ContentType)
	assert.Contains(t, string(store.bodies[0]), "_MYGOV_FILLABLE_")
	assert.Equal(t, len(store.bodies[0]), result.Size)
}

func TestService_StoreErrors(t *testing.T) {
	tool := &testsupport.FakeTool{}

	svc, _ := newTestService(t, tool, nil)
	_, err := svc.Store(context.Background(), StoreRequest{
		FillRequest: FillRequest{Source: "forms/sample.pdf"}, Bucket: "b", Path: "p",
	})
	assert.ErrorIs(t, err, ErrStorageDisabled)

	store := &recordingStorage{err: errors.New("bucket unavailable")}
	svc, _ = newTestService(t, tool, store)

	_, err = svc.Store(context.Background(), StoreRequest{
		FillRequest: FillRequest{Source: "forms/sample.pdf"}, Bucket: "", Path: "p",
	})
	assert.ErrorIs(t, err, storage.ErrInvalidLocation)
	assert.Empty(t, tool.FillCalls, "location is validated before filling")

	_, err = svc.Store(context.Background(), StoreRequest{
		FillRequest: FillRequest{Source: "forms/sample.pdf"}, Bucket: "b", Path: "p",
	})
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestService_Uncompress(t *testing.T) {
	svc, _ := newTestService(t, &testsupport.FakeTool{}, nil)

	data, err := svc.Uncompress(context.Background(), FieldsRequest{Source: "forms/sample.pdf"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
}
