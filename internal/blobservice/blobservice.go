// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blobservice is an example rpcserver.Service: it treats the
// request payload as an S3 object key (with a one-byte compression
// mode prefix) and returns the fetched object, optionally
// gzip- or zstd-compressed, as the response payload.
package blobservice

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// Compression mode constants for the request's mode byte.
const (
	CompressionGzip byte = 0x00
	CompressionZstd byte = 0x01
)

// Service fetches objects from one S3 bucket on behalf of RPC callers.
type Service struct {
	client *s3.Client
	bucket string
}

// New builds a Service against bucket using the default AWS
// credential chain, optionally overridden by static keys
// (accessKeyID/secretAccessKey may both be empty to use the default
// chain — environment, shared config, or instance role).
func New(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string) (*Service, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobservice: loading AWS config: %w", err)
	}

	return &Service{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Serve implements rpcserver.Service. request is [mode byte][key bytes].
func (s *Service) Serve(ctx context.Context, request []byte, rsp *wire.RspBuf) error {
	if len(request) < 1 {
		return wire.StatusError("blobservice: empty request")
	}
	mode, key := request[0], string(request[1:])
	if key == "" {
		return wire.StatusError("blobservice: missing object key")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobservice: fetching %q: %w", key, err)
	}
	defer out.Body.Close()

	return compressInto(rsp, out.Body, mode)
}

// compressInto streams src into rsp under the given compression mode.
// An unrecognized mode copies the object uncompressed rather than
// failing the whole call — a client that doesn't care about
// compression can pass any byte and still get its data.
func compressInto(rsp *wire.RspBuf, src io.Reader, mode byte) error {
	switch mode {
	case CompressionZstd:
		zw, err := zstd.NewWriter(rsp)
		if err != nil {
			return fmt.Errorf("blobservice: zstd writer: %w", err)
		}
		if _, err := io.Copy(zw, src); err != nil {
			zw.Close()
			return fmt.Errorf("blobservice: zstd compress: %w", err)
		}
		return zw.Close()
	case CompressionGzip:
		gw := pgzip.NewWriter(rsp)
		if _, err := io.Copy(gw, src); err != nil {
			gw.Close()
			return fmt.Errorf("blobservice: gzip compress: %w", err)
		}
		return gw.Close()
	default:
		_, err := io.Copy(rsp, src)
		return err
	}
}
