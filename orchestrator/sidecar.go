package orchestrator

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/hivdb/codfreq/segfreq"
)

var segfreqBOM = []byte{0xEF, 0xBB, 0xBF}

const segfreqZstdExt = ".zst"

// WriteSegFreqSidecar persists sf as the BOM-prefixed CSV sidecar spec.md
// §4.2.5/§5 describes, atomically: it writes to a temp file in path's own
// directory and renames it into place only once the write succeeds, so a
// reader never observes a partial sidecar. A path ending in ".zst" gets the
// zstd-compressed encoding SegFreqPath names by default; any other path
// (SegFreqPlainPath) is written as plain CSV.
func WriteSegFreqSidecar(path string, sf *segfreq.SegFreq) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	var w io.Writer = tmp
	var zw *zstd.Encoder
	if strings.HasSuffix(path, segfreqZstdExt) {
		zw, err = zstd.NewWriter(tmp)
		if err != nil {
			tmp.Close()
			return err
		}
		w = zw
	}

	bw := bufio.NewWriter(w)
	if _, err = bw.Write(segfreqBOM); err != nil {
		tmp.Close()
		return err
	}
	if err = sf.Dump(bw); err != nil {
		tmp.Close()
		return err
	}
	if err = bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if zw != nil {
		if err = zw.Close(); err != nil {
			tmp.Close()
			return err
		}
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadSegFreqSidecar loads a sidecar written by WriteSegFreqSidecar,
// transparently decompressing a ".zst"-suffixed path and skipping the
// leading BOM before handing the rest to segfreq.Load.
func ReadSegFreqSidecar(path string) (*segfreq.SegFreq, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, segfreqZstdExt) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	br := bufio.NewReader(r)
	bom, err := br.Peek(3)
	if err == nil && len(bom) == 3 && bom[0] == segfreqBOM[0] && bom[1] == segfreqBOM[1] && bom[2] == segfreqBOM[2] {
		if _, err := br.Discard(3); err != nil {
			return nil, err
		}
	}
	return segfreq.Load(br)
}
