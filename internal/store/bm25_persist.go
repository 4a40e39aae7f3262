package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// Blob layout:
//
//	magic   [6]byte  "ARXLEX"
//	version uint16   big endian
//	length  uint64   compressed payload length
//	crc     uint32   CRC-32 (IEEE) of the compressed payload
//	payload []byte   zstd(gob(lexicalSnapshot))
const (
	blobMagic   = "ARXLEX"
	blobVersion = uint16(1)
	headerSize  = len(blobMagic) + 2 + 8 + 4

	// maxPayload guards against allocating from a corrupt length field.
	maxPayload = 8 << 30
)

type lexicalSnapshot struct {
	SnapshotID string
	BuiltAt    time.Time
	Params     BM25Params
	Terms      []string
	Offsets    []uint32
	Postings   []Posting
	DF         []uint32
	Docs       []DocMeta
	DocLens    []uint32
	AvgDocLen  float64
}

// Save writes the index as a single self-validating blob.
func (ix *LexicalIndex) Save(w io.Writer) error {
	var payload bytes.Buffer
	enc, err := zstd.NewWriter(&payload, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	snap := lexicalSnapshot{
		SnapshotID: ix.snapshotID,
		BuiltAt:    ix.builtAt,
		Params:     ix.params,
		Terms:      ix.terms,
		Offsets:    ix.offsets,
		Postings:   ix.postings,
		DF:         ix.df,
		Docs:       ix.docs,
		DocLens:    ix.docLens,
		AvgDocLen:  ix.avgDocLen,
	}
	if err := gob.NewEncoder(enc).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode lexical index: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd encoder: %w", err)
	}

	header := make([]byte, headerSize)
	copy(header, blobMagic)
	binary.BigEndian.PutUint16(header[6:], blobVersion)
	binary.BigEndian.PutUint64(header[8:], uint64(payload.Len()))
	binary.BigEndian.PutUint32(header[16:], crc32.ChecksumIEEE(payload.Bytes()))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// SaveFile writes the blob to path atomically (temp file + rename).
func (ix *LexicalIndex) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := ix.Save(bw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// LoadLexicalIndex reads a blob written by Save. Any structural problem is
// reported as a fatal CorruptIndex error; a version mismatch as IndexVersion.
// tok tokenizes queries and should match the tokenizer used at build time.
func LoadLexicalIndex(r io.Reader, tok *Tokenizer) (*LexicalIndex, error) {
	if tok == nil {
		tok = NewTokenizer(nil)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("read header: %w", err))
	}
	if string(header[:6]) != blobMagic {
		return nil, aerrors.CorruptIndex("", errors.New("bad magic"))
	}
	if v := binary.BigEndian.Uint16(header[6:]); v != blobVersion {
		return nil, aerrors.New(aerrors.ErrCodeIndexVersion,
			fmt.Sprintf("lexical index format version %d, expected %d", v, blobVersion), nil).
			WithSuggestion("rebuild the index with 'archivist build'")
	}
	length := binary.BigEndian.Uint64(header[8:])
	if length > maxPayload {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("payload length %d out of range", length))
	}
	want := binary.BigEndian.Uint32(header[16:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("read payload: %w", err))
	}
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("checksum mismatch: %08x != %08x", got, want))
	}

	dec, err := zstd.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("open zstd stream: %w", err))
	}
	defer dec.Close()

	var snap lexicalSnapshot
	if err := gob.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, aerrors.CorruptIndex("", fmt.Errorf("decode payload: %w", err))
	}
	if err := snap.validate(); err != nil {
		return nil, aerrors.CorruptIndex("", err)
	}

	ix := &LexicalIndex{
		params:     snap.Params,
		snapshotID: snap.SnapshotID,
		builtAt:    snap.BuiltAt,
		terms:      snap.Terms,
		termIDs:    make(map[string]uint32, len(snap.Terms)),
		offsets:    snap.Offsets,
		postings:   snap.Postings,
		df:         snap.DF,
		docs:       snap.Docs,
		docLens:    snap.DocLens,
		avgDocLen:  snap.AvgDocLen,
		tokenizer:  tok,
	}
	for id, term := range ix.terms {
		ix.termIDs[term] = uint32(id)
	}
	ix.finalize()
	return ix, nil
}

// LoadLexicalIndexFile opens path and loads the blob.
func LoadLexicalIndexFile(path string, tok *Tokenizer) (*LexicalIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, aerrors.IndexNotBuilt().WithDetail("path", path)
		}
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("lexical_index_close_failed", slog.String("error", err.Error()))
		}
	}()

	ix, err := LoadLexicalIndex(bufio.NewReader(f), tok)
	if err != nil {
		var ae *aerrors.ArchivistError
		if errors.As(err, &ae) {
			ae.WithDetail("path", path)
		}
		slog.Error("lexical_index_load_failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	slog.Info("lexical_index_loaded",
		slog.String("path", path),
		slog.String("snapshot_id", ix.snapshotID),
		slog.Int("docs", ix.Len()))
	return ix, nil
}

func (s *lexicalSnapshot) validate() error {
	nTerms := len(s.Terms)
	nDocs := len(s.Docs)

	if len(s.Offsets) != nTerms+1 {
		return fmt.Errorf("offsets length %d, expected %d", len(s.Offsets), nTerms+1)
	}
	if len(s.DF) != nTerms {
		return fmt.Errorf("df length %d, expected %d", len(s.DF), nTerms)
	}
	if len(s.DocLens) != nDocs {
		return fmt.Errorf("doc lengths %d, expected %d", len(s.DocLens), nDocs)
	}
	if s.Offsets[0] != 0 || int(s.Offsets[nTerms]) != len(s.Postings) {
		return errors.New("offsets do not span postings")
	}
	for t := 0; t < nTerms; t++ {
		if s.Offsets[t+1] < s.Offsets[t] || s.Offsets[t+1]-s.Offsets[t] != s.DF[t] {
			return fmt.Errorf("term %d: offsets disagree with df", t)
		}
	}
	for _, p := range s.Postings {
		if int(p.Doc) >= nDocs || p.TF == 0 {
			return fmt.Errorf("posting references document %d of %d", p.Doc, nDocs)
		}
	}
	return nil
}
