package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artfolio/cartstore/pkg/db"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/artfolio/cartstore/pkg/storage"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a consistent copy of the store to S3",
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <s3-key>",
	Short: "Replace the local store with a backup from S3",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups under the configured S3 prefix",
	RunE:  runBackups,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(backupsCmd)
}

func s3Client(cmd *cobra.Command) (*storage.Client, error) {
	client, err := storage.NewClient(cmd.Context(), cfg.S3Bucket, cfg.S3Region, cfg.S3Anonymous)
	if err != nil {
		return nil, errors.Wrap(err, "S3 client failed")
	}
	return client, nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	client, err := s3Client(cmd)
	if err != nil {
		return err
	}

	conn := db.NewConn(cfg.DBPath)
	defer conn.Close()

	tmpDir, err := os.MkdirTemp("", "cartstore-backup-")
	if err != nil {
		return errors.Wrap(err, "failed to create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "cart.db")
	if err := conn.SnapshotTo(cmd.Context(), snapshot); err != nil {
		return errors.Wrap(err, "snapshot failed")
	}

	key := storage.BackupKey(cfg.S3Prefix, time.Now())
	result, err := client.Upload(cmd.Context(), snapshot, key)
	if err != nil {
		return errors.Wrap(err, "upload failed")
	}

	fmt.Printf("Uploaded s3://%s/%s (%d bytes, sha256 %s)\n", cfg.S3Bucket, result.Key, result.Size, result.SHA256)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	key := args[0]

	client, err := s3Client(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// Download next to the target so the final rename stays on one filesystem
	staged := cfg.DBPath + ".restore"
	defer os.Remove(staged)

	result, err := client.Download(cmd.Context(), key, staged)
	if err != nil {
		return errors.Wrap(err, "download failed")
	}

	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(cfg.DBPath + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to remove sidecar file")
		}
	}
	if err := os.Rename(staged, cfg.DBPath); err != nil {
		return errors.Wrap(err, "failed to replace store")
	}

	conn := db.NewConn(cfg.DBPath)
	defer conn.Close()

	// Opening migrates an older backup forward
	version, err := conn.Version(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "restored store failed to open")
	}

	fmt.Printf("Restored %s (sha256 %s) at schema version %d\n", key, result.SHA256, version)
	return nil
}

func runBackups(cmd *cobra.Command, args []string) error {
	client, err := s3Client(cmd)
	if err != nil {
		return err
	}

	prefix := strings.Trim(cfg.S3Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	keys, err := client.ListObjects(cmd.Context(), prefix)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(keys) == 0 {
		fmt.Println("No backups found")
		return nil
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}
