// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls s3://bucket[/prefix]",
	Short: "List objects",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)

	f := lsCmd.Flags()
	f.Bool("all", false, "Follow truncated listings to the end")
	f.Bool("recursive", false, "List every key under the prefix instead of grouping by /")
	f.Int("max_keys", 0, "Page size (0 = store default)")
	f.Bool("human", false, "Print sizes and times in human readable form")
	f.String("encoding_type", "", "Ask the store to url-encode keys (url)")
}

func runLs(cmd *cobra.Command, args []string) error {
	uri, err := ParseObjectURI(args[0])
	if err != nil {
		return err
	}
	f := NewFlagLoader(cmd)
	all := f.Bool("all")
	recursive := f.Bool("recursive")
	maxKeys := f.Int("max_keys")
	human := f.Bool("human")
	encodingType := f.String("encoding_type")

	req := &s3types.ListObjectsRequest{
		Bucket:       uri.Bucket,
		Prefix:       uri.Key,
		MaxKeys:      maxKeys,
		EncodingType: encodingType,
	}
	if !recursive {
		req.Delimiter = "/"
	}

	client, ctx, cancel, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	out := cmd.OutOrStdout()
	if !all {
		page, err := client.ListObjects(ctx, req).Await(ctx)
		if err != nil {
			return err
		}
		printListing(out, page, human)
		if page.Truncated {
			fmt.Fprintf(out, "... truncated, next marker %q\n", page.NextMarker)
		}
		return nil
	}

	var objects int
	var total uint64
	for page, err := range client.Pages(ctx, req) {
		if err != nil {
			return err
		}
		printListing(out, page, human)
		for _, o := range page.Objects {
			objects++
			total += uint64(o.Size)
		}
	}
	if human {
		fmt.Fprintf(out, "%s objects, %s\n", humanize.Comma(int64(objects)), humanize.IBytes(total))
	}
	return nil
}

func printListing(w io.Writer, page *s3types.ObjectListing, human bool) {
	for _, p := range page.CommonPrefixes {
		fmt.Fprintf(w, "%19s %10s %s\n", "", "PRE", p)
	}
	for _, o := range page.Objects {
		fmt.Fprintf(w, "%19s %10s %s\n", formatTime(o.LastModified, human), formatSize(o.Size, human), o.Key)
	}
}

func formatSize(size int64, human bool) string {
	if human {
		return humanize.IBytes(uint64(size))
	}
	return fmt.Sprint(size)
}

func formatTime(t *time.Time, human bool) string {
	switch {
	case t == nil:
		return "-"
	case human:
		return humanize.Time(*t)
	default:
		return t.UTC().Format(time.DateTime)
	}
}
