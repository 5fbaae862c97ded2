package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Archive closes the live journal, recompresses it into a timestamped zstd
// archive, and reopens a fresh journal. Intended for periodic compaction.
func (j *Journal) Archive() (string, error) {
	if j == nil {
		return "", fmt.Errorf("journal not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	//1.- Seal the live stream before re-reading it for recompression.
	if err := j.stream.Close(); err != nil {
		return "", err
	}
	if err := j.file.Close(); err != nil {
		return "", err
	}

	livePath := filepath.Join(j.dir, journalName)
	archivePath := filepath.Join(j.dir, fmt.Sprintf("results-%s.jsonl.zst", j.now().UTC().Format("20060102T150405Z")))
	if err := recompress(livePath, archivePath); err != nil {
		return "", err
	}
	if err := os.Remove(livePath); err != nil {
		return "", err
	}

	//2.- Reopen a fresh journal so appends continue seamlessly.
	file, err := os.OpenFile(livePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	j.file = file
	j.stream = snappy.NewBufferedWriter(file)
	return archivePath, nil
}

// recompress streams a snappy journal into a zstd archive.
func recompress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	encoder, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(encoder, snappy.NewReader(in)); err != nil {
		encoder.Close()
		out.Close()
		return err
	}
	if err := encoder.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadArchive decodes a zstd archive back into raw JSONL bytes, for tooling
// and tests.
func ReadArchive(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return io.ReadAll(decoder)
}
