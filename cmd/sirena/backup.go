package main

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/vault"
	"github.com/klauspost/compress/zstd"
)

// runBackup exports the audit database (plus its sqlite sidecar files)
// as a tar.zst archive, optionally sealed with a passphrase from
// SIRENA_BACKUP_PASSPHRASE.
func runBackup(args []string) error {
	var outputPath string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		}
	}

	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: sirena backup -f <output.tar.zst>\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths := auditFiles(cfg.Audit.Path)
	if len(paths) == 0 {
		return fmt.Errorf("no audit database at %s", cfg.Audit.Path)
	}

	var buf bytes.Buffer
	if err := writeArchive(paths, &buf); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	data := buf.Bytes()
	if passphrase := os.Getenv("SIRENA_BACKUP_PASSPHRASE"); passphrase != "" {
		sealed, err := vault.New(passphrase).Seal(data)
		if err != nil {
			return fmt.Errorf("seal archive: %w", err)
		}
		data = sealed
		slog.Info("archive sealed with passphrase")
	}

	if err := os.WriteFile(outputPath, data, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	slog.Info("backup written", "path", outputPath, "files", len(paths), "bytes", len(data))
	return nil
}

// auditFiles returns the database file and any sqlite WAL/shm sidecars
// that exist next to it.
func auditFiles(dbPath string) []string {
	var paths []string
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

func writeArchive(paths []string, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	tw := tar.NewWriter(zw)
	for _, path := range paths {
		if err := addFile(tw, path); err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	return zw.Close()
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
