// Package pdf extracts the plain text of PDF documents for use as tutorial context.
package pdf

import (
	"bytes"
	"io"
	"os"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrExtraction = errors.New("failed to extract text from PDF")

type Extractor interface {
	ExtractText(path string) (string, error)
	ExtractReader(r io.ReaderAt, size int64) (string, error)
}

// TextExtractor reads the plain text of every page. MaxBytes bounds the size of the
// documents it accepts, 0 means no limit.
type TextExtractor struct {
	MaxBytes int64
}

var _ Extractor = (*TextExtractor)(nil)

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) ExtractText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(ErrExtraction, "could not open %s: %v", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return "", errors.Wrapf(ErrExtraction, "could not stat %s: %v", path, err)
	}

	log.Debug().Str("path", path).Int64("size", st.Size()).Msg("Extracting PDF text")
	return e.ExtractReader(f, st.Size())
}

func (e *TextExtractor) ExtractReader(r io.ReaderAt, size int64) (text string, err error) {
	if e.MaxBytes > 0 && size > e.MaxBytes {
		return "", errors.Wrapf(ErrExtraction, "document is %d bytes, limit is %d", size, e.MaxBytes)
	}

	// the pdf reader panics on some malformed documents
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = errors.Wrapf(ErrExtraction, "malformed document: %v", rec)
		}
	}()

	reader, err := lpdf.NewReader(r, size)
	if err != nil {
		return "", errors.Wrapf(ErrExtraction, "%v", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", errors.Wrapf(ErrExtraction, "%v", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", errors.Wrapf(ErrExtraction, "%v", err)
	}

	text = strings.TrimSpace(buf.String())
	log.Debug().Int("pages", reader.NumPage()).Int("chars", len(text)).Msg("Extracted PDF text")
	return text, nil
}
