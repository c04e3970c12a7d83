// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3client"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <file|-> s3://bucket/key",
	Short: "Upload an object",
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

var getCmd = &cobra.Command{
	Use:   "get s3://bucket/key [file|-]",
	Short: "Download an object",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

var rmCmd = &cobra.Command{
	Use:   "rm s3://bucket/key...",
	Short: "Delete objects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var presignCmd = &cobra.Command{
	Use:   "presign s3://bucket/key",
	Short: "Print a presigned GET URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresign,
}

func init() {
	rootCmd.AddCommand(putCmd, getCmd, rmCmd, presignCmd)

	f := putCmd.Flags()
	f.String("content_type", "", "Content-Type (default: guessed from the file extension)")
	f.String("storage_class", "", "Storage class")
	f.StringToString("meta", nil, "User metadata as name=value pairs")
	f.String("checksum", "", "Additional checksum algorithm (CRC64NVME)")

	presignCmd.Flags().Duration("expires", time.Hour, "URL validity")
}

func runPut(cmd *cobra.Command, args []string) error {
	uri, err := parseKeyURI(args[1])
	if err != nil {
		return err
	}
	f := NewFlagLoader(cmd)
	checksum, err := s3types.ParseChecksumAlgorithm(f.String("checksum"))
	if err != nil {
		return err
	}
	contentType := f.String("content_type")
	storageClass := f.String("storage_class")
	if storageClass != "" {
		sc, err := s3types.ParseStorageClass(storageClass)
		if err != nil {
			return err
		}
		storageClass = sc.String()
	}
	meta := f.StringToString("meta")

	var body io.Reader = cmd.InOrStdin()
	var size int64
	if args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			return err
		}
		body, size = file, info.Size()
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(args[0]))
		}
	}

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	start := time.Now()
	_, err = client.PutObject(ctx, &s3types.PutObjectRequest{
		Bucket: uri.Bucket,
		Key:    uri.Key,
		Body:   body,
		Metadata: s3types.ObjectMetadata{
			ContentLength: size,
			ContentType:   contentType,
			StorageClass:  storageClass,
			UserMetadata:  meta,
			Checksum:      checksum,
		},
	}).Await(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("uri", uri.String()).Dur("elapsed", time.Since(start)).Msg("uploaded")
	fmt.Fprintf(cmd.OutOrStdout(), "upload: %s -> %s\n", args[0], uri)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	uri, err := parseKeyURI(args[0])
	if err != nil {
		return err
	}
	target := filepath.Base(uri.Key)
	if len(args) == 2 {
		target = args[1]
	}

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	data, err := client.GetObject(ctx, uri.Bucket, uri.Key).Await(ctx)
	if err != nil {
		return err
	}

	if target == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "download: %s -> %s (%s)\n", uri, target, humanize.IBytes(uint64(len(data))))
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	uris := make([]ObjectURI, 0, len(args))
	for _, arg := range args {
		uri, err := parseKeyURI(arg)
		if err != nil {
			return err
		}
		uris = append(uris, uri)
	}

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	// Dispatch every delete before awaiting any of them.
	futures := make([]*s3client.Future[struct{}], len(uris))
	for i, uri := range uris {
		futures[i] = client.DeleteObject(ctx, uri.Bucket, uri.Key)
	}

	var failed int
	for i, future := range futures {
		if _, err := future.Await(ctx); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "delete failed: %s: %v\n", uris[i], err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delete: %s\n", uris[i])
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletes failed", failed, len(uris))
	}
	return nil
}

func runPresign(cmd *cobra.Command, args []string) error {
	uri, err := parseKeyURI(args[0])
	if err != nil {
		return err
	}
	expires := NewFlagLoader(cmd).Duration("expires")

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	url, err := client.PresignGetObject(ctx, uri.Bucket, uri.Key, expires)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
