package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/queue"
	"digidoc/internal/service"
)

func TestProcessRequest_ArgsRoundTrip(t *testing.T) {
	req := service.ProcessRequest{
		DocumentID: "d1", TenantID: "t1", DocumentType: "receipt",
		SourcePath: "/data/in.png", Extension: "png",
	}
	got, err := service.ProcessRequestFromArgs(req.Args())
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.NotContains(t, req.Args(), "source_key")
}

func TestProcessRequestFromArgs_Invalid(t *testing.T) {
	cases := map[string]map[string]any{
		"missing ids":    {"source_path": "/x.png"},
		"missing source": {"document_id": "d", "tenant_id": "t"},
		"wrong type":     {"document_id": 7, "tenant_id": "t", "source_path": "/x.png"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.ProcessRequestFromArgs(args)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestRegisterTasks(t *testing.T) {
	h := newHarness(t, nil)
	tasks := queue.NewTaskRegistry()
	service.RegisterTasks(tasks, h.proc)
	assert.Equal(t, []string{service.TaskPreprocessDocument, service.TaskProcessDocument}, tasks.Names())

	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(path, invoicePNG(t), 0o644))
	args := service.ProcessRequest{DocumentID: "d1", TenantID: "tenant-a", SourcePath: path}.Args()

	process, ok := tasks.Lookup(service.TaskProcessDocument)
	require.True(t, ok)
	out, err := process(context.Background(), args)
	require.NoError(t, err)
	res := out.(*domain.DocumentResult)
	assert.Equal(t, domain.StateReview, res.State)

	preprocess, ok := tasks.Lookup(service.TaskPreprocessDocument)
	require.True(t, ok)
	out, err = preprocess(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, out.(*domain.DocumentResult).State)

	_, err = process(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
