package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyVerified copies src to dst and proves the copy landed intact: the
// source is hashed while streaming, then dst is re-read from disk and its
// hash and size compared. A mismatched dst is removed.
func CopyVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	want := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, want))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("short copy: %d of %d bytes", written, info.Size())
	}

	got, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if !bytes.Equal(got, want.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy of %s failed verification", src)
	}
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
