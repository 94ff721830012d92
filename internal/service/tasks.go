package service

import (
	"context"
	"fmt"

	"digidoc/internal/domain"
	"digidoc/internal/queue"
)

// Task names accepted by the queue.
const (
	TaskProcessDocument    = "process_document"
	TaskPreprocessDocument = "preprocess_document"
)

// Args encodes the request as queue job arguments. Inline bytes are not
// carried; callers store uploads first and pass the path.
func (r ProcessRequest) Args() map[string]any {
	args := map[string]any{
		"document_id": r.DocumentID,
		"tenant_id":   r.TenantID,
	}
	for k, v := range map[string]string{
		"document_type": r.DocumentType,
		"source_path":   r.SourcePath,
		"source_key":    r.SourceKey,
		"extension":     r.Extension,
	} {
		if v != "" {
			args[k] = v
		}
	}
	return args
}

// ProcessRequestFromArgs decodes queue job arguments.
func ProcessRequestFromArgs(args map[string]any) (ProcessRequest, error) {
	str := func(key string) (string, error) {
		v, ok := args[key]
		if !ok || v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string", domain.ErrInvalidRequest, key)
		}
		return s, nil
	}

	var req ProcessRequest
	for key, dst := range map[string]*string{
		"document_id":   &req.DocumentID,
		"tenant_id":     &req.TenantID,
		"document_type": &req.DocumentType,
		"source_path":   &req.SourcePath,
		"source_key":    &req.SourceKey,
		"extension":     &req.Extension,
	} {
		s, err := str(key)
		if err != nil {
			return ProcessRequest{}, err
		}
		*dst = s
	}
	if req.DocumentID == "" || req.TenantID == "" {
		return ProcessRequest{}, fmt.Errorf("%w: document_id and tenant_id are required", domain.ErrInvalidRequest)
	}
	if req.SourcePath == "" && req.SourceKey == "" {
		return ProcessRequest{}, fmt.Errorf("%w: source_path or source_key is required", domain.ErrInvalidRequest)
	}
	return req, nil
}

// RegisterTasks adds the document tasks to tasks. Task handlers return the
// document result; pipeline failures are reported inside it, so only
// malformed arguments fail the job.
func RegisterTasks(tasks *queue.TaskRegistry, p *DocumentProcessor) {
	tasks.Register(TaskProcessDocument, func(ctx context.Context, args map[string]any) (any, error) {
		req, err := ProcessRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return p.Process(ctx, req), nil
	})
	tasks.Register(TaskPreprocessDocument, func(ctx context.Context, args map[string]any) (any, error) {
		req, err := ProcessRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return p.PreprocessDocument(ctx, req), nil
	})
}
