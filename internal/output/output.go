// SPDX-License-Identifier: MPL-2.0

// Package output delivers the captured engine output to its destination.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// TargetStdout writes to standard output.
	TargetStdout = "stdout"
	// TargetMetadata publishes to the metadata API.
	TargetMetadata = "metadata"
	// filePrefix introduces a file target, e.g. file:/tmp/result.json.
	filePrefix = "file:"
)

// ErrInvalidTarget is returned for unrecognised output targets.
var ErrInvalidTarget = errors.New("invalid output target")

type (
	// Sink receives the engine output exactly once.
	Sink interface {
		Write(ctx context.Context, output []byte) error
		String() string
	}

	// Publisher publishes output under a key.
	Publisher interface {
		SetOutput(ctx context.Context, key string, output []byte) error
	}

	// WriterSink writes output to an io.Writer.
	WriterSink struct {
		W    io.Writer
		Name string
	}

	// FileSink writes output to a file, replacing it.
	FileSink struct {
		Path string
	}

	// MetadataSink publishes output through the metadata API.
	MetadataSink struct {
		Publisher Publisher
		Key       string
	}
)

// Parse resolves an output target: "stdout" (or empty), "file:<path>" or
// "metadata". pub is required only for the metadata target.
func Parse(target string, stdout io.Writer, pub Publisher, key string) (Sink, error) {
	switch {
	case target == "" || target == TargetStdout:
		return &WriterSink{W: stdout, Name: TargetStdout}, nil
	case strings.HasPrefix(target, filePrefix):
		path := strings.TrimPrefix(target, filePrefix)
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: %q has no path", ErrInvalidTarget, target)
		}
		return &FileSink{Path: path}, nil
	case target == TargetMetadata:
		if pub == nil {
			return nil, fmt.Errorf("%w: metadata output needs a metadata URL", ErrInvalidTarget)
		}
		return &MetadataSink{Publisher: pub, Key: key}, nil
	default:
		return nil, fmt.Errorf("%w: %q (use stdout, file:<path> or metadata)", ErrInvalidTarget, target)
	}
}

// Write implements Sink.
func (s *WriterSink) Write(_ context.Context, output []byte) error {
	if _, err := s.W.Write(output); err != nil {
		return fmt.Errorf("write output to %s: %w", s.Name, err)
	}
	return nil
}

// String implements Sink.
func (s *WriterSink) String() string { return s.Name }

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, output []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(s.Path, output, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// String implements Sink.
func (s *FileSink) String() string { return filePrefix + s.Path }

// Write implements Sink.
func (s *MetadataSink) Write(ctx context.Context, output []byte) error {
	return s.Publisher.SetOutput(ctx, s.Key, output)
}

// String implements Sink.
func (s *MetadataSink) String() string { return TargetMetadata }
