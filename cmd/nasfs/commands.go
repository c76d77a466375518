package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maxiofs/nasfs/internal/metadata"
	"github.com/maxiofs/nasfs/internal/metrics"
	"github.com/maxiofs/nasfs/internal/storage"
)

var errPublicURLUnavailable = errors.New("public URL not available")

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save BUCKET FILE",
		Short: "Copy a local file onto the NAS",
		Args:  cobra.ExactArgs(2),
		RunE:  runWithApp(runSave),
	}
	cmd.Flags().String("id", "", "File id (default: random UUID)")
	cmd.Flags().Bool("public-url", false, "Print the public URL after saving")
	return cmd
}

func runSave(cmd *cobra.Command, a *app, args []string) error {
	bucket, source := args[0], args[1]

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", source, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", source)
	}

	fileID := fileIDFlag(cmd)
	withURL, _ := cmd.Flags().GetBool("public-url")

	// Hide Name() so the backend copies the bytes instead of linking
	data := struct{ io.Reader }{f}
	storagePath, err := a.backend.Save(cmd.Context(), bucket, fileID, data, storage.SaveOptions{PublicURL: withURL})
	if err != nil {
		return err
	}

	fm := &storage.FileMetadata{
		Bucket:      bucket,
		FileID:      fileID,
		FileName:    filepath.Base(source),
		Size:        info.Size(),
		StoragePath: storagePath,
	}
	return record(cmd, a, fm, withURL)
}

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link BUCKET PATH",
		Short: "Register a file that already lives on the NAS",
		Args:  cobra.ExactArgs(2),
		RunE:  runWithApp(runLink),
	}
	cmd.Flags().String("id", "", "File id (default: random UUID)")
	cmd.Flags().Bool("public-url", false, "Print the public URL after linking")
	return cmd
}

func runLink(cmd *cobra.Command, a *app, args []string) error {
	bucket, source := args[0], args[1]

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("NAS file not found: %s: %w", source, err)
	}

	fileID := fileIDFlag(cmd)
	withURL, _ := cmd.Flags().GetBool("public-url")

	storagePath, err := a.backend.Save(cmd.Context(), bucket, fileID, storage.ExistingFile(source), storage.SaveOptions{PublicURL: withURL})
	if err != nil {
		return err
	}

	fm := &storage.FileMetadata{
		Bucket:      bucket,
		FileID:      fileID,
		FileName:    filepath.Base(source),
		Size:        info.Size(),
		StoragePath: storagePath,
	}
	return record(cmd, a, fm, withURL)
}

// record stores fm in the catalog and prints its storage path
func record(cmd *cobra.Command, a *app, fm *storage.FileMetadata, withURL bool) error {
	if err := a.catalog.Put(cmd.Context(), fm); err != nil {
		return fmt.Errorf("file stored at %s but not recorded: %w", fm.StoragePath, err)
	}

	a.logger.WithFields(logrus.Fields{
		"bucket":  fm.Bucket,
		"file_id": fm.FileID,
		"size":    fm.Size,
	}).Info("File recorded")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\t%s\n", fm.FileID, fm.StoragePath)
	if withURL {
		if url, ok := a.backend.PublicURL(cmd.Context(), fm, time.Hour); ok {
			fmt.Fprintln(out, url)
		}
	}
	return nil
}

func fileIDFlag(cmd *cobra.Command) string {
	if id, _ := cmd.Flags().GetString("id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func lookup(cmd *cobra.Command, a *app, bucket, fileID string) (*storage.FileMetadata, error) {
	fm, err := a.catalog.Get(cmd.Context(), bucket, fileID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, fmt.Errorf("file %s/%s is not in the catalog", bucket, fileID)
	}
	return fm, err
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat BUCKET ID",
		Short: "Write a file's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE:  runWithApp(runCat),
	}
}

func runCat(cmd *cobra.Command, a *app, args []string) error {
	fm, err := lookup(cmd, a, args[0], args[1])
	if err != nil {
		return err
	}

	rc, err := a.backend.Load(cmd.Context(), fm)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", fm.Bucket, fm.FileID, err)
	}
	return nil
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm BUCKET ID",
		Short: "Delete a file (in read-only mode only the catalog record goes)",
		Args:  cobra.ExactArgs(2),
		RunE:  runWithApp(runRm),
	}
}

func runRm(cmd *cobra.Command, a *app, args []string) error {
	fm, err := lookup(cmd, a, args[0], args[1])
	if err != nil {
		return err
	}

	if !a.backend.Delete(cmd.Context(), fm) {
		return fmt.Errorf("failed to delete %s/%s", fm.Bucket, fm.FileID)
	}
	if err := a.catalog.Delete(cmd.Context(), fm.Bucket, fm.FileID); err != nil {
		return fmt.Errorf("file deleted but catalog record kept: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", fm.Bucket, fm.FileID)
	return nil
}

func newURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url BUCKET ID",
		Short: "Print a file's public URL",
		Args:  cobra.ExactArgs(2),
		RunE:  runWithApp(runURL),
	}
	cmd.Flags().Duration("expire", time.Hour, "Requested URL lifetime (ignored by the NAS backend)")
	return cmd
}

func runURL(cmd *cobra.Command, a *app, args []string) error {
	fm, err := lookup(cmd, a, args[0], args[1])
	if err != nil {
		return err
	}

	expire, _ := cmd.Flags().GetDuration("expire")
	url, ok := a.backend.PublicURL(cmd.Context(), fm, expire)
	if !ok {
		return errPublicURLUnavailable
	}

	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [BUCKET]",
		Short: "List catalog records",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWithApp(runLs),
	}
}

func runLs(cmd *cobra.Command, a *app, args []string) error {
	bucket := ""
	if len(args) == 1 {
		bucket = args[0]
	}

	files, err := a.catalog.List(cmd.Context(), bucket)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKET\tID\tNAME\tSIZE\tCREATED\tSTORAGE PATH")
	for _, fm := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			fm.Bucket,
			fm.FileID,
			fm.FileName,
			humanize.IBytes(uint64(max(fm.Size, 0))),
			fm.CreatedAt.Local().Format(time.DateTime),
			fm.StoragePath,
		)
	}
	return w.Flush()
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Show NAS disk usage",
		Args:  cobra.NoArgs,
		RunE:  runWithApp(runStat),
	}
}

func runStat(cmd *cobra.Command, a *app, args []string) error {
	stats, err := metrics.GetDiskUsage(a.basePath)
	if err != nil {
		return fmt.Errorf("failed to read disk usage of %s: %w", a.basePath, err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Base path:\t%s\n", stats.Path)
	fmt.Fprintf(w, "Filesystem:\t%s\n", stats.Fstype)
	fmt.Fprintf(w, "Total:\t%s\n", humanize.IBytes(stats.TotalBytes))
	fmt.Fprintf(w, "Used:\t%s (%.1f%%)\n", humanize.IBytes(stats.UsedBytes), stats.UsedPercent)
	fmt.Fprintf(w, "Free:\t%s\n", humanize.IBytes(stats.FreeBytes))
	fmt.Fprintf(w, "Read-only:\t%t\n", a.cfg.Storage.NAS.ReadOnly)
	return w.Flush()
}
