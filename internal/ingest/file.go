package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/fileid"
	"github.com/cortexbase/cortex/internal/models"
	"github.com/cortexbase/cortex/internal/storage"
)

// Transcriber converts an audio file to text. It is an external collaborator;
// a nil Transcriber means the transcription capability is off and audio
// ingestion is rejected explicitly.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// OCRReader converts an image file to text. Same capability rules as Transcriber.
type OCRReader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// TextExtractor extracts text from document files (pdf, docx, xlsx, plain).
type TextExtractor interface {
	Extract(path string) (string, error)
}

// FileIngestor routes files to the right media-to-text collaborator and
// ingests the result. Capabilities are decided at construction: a nil
// collaborator rejects that media type instead of falling back silently.
type FileIngestor struct {
	ingestor    *Ingestor
	extractor   TextExtractor
	transcriber Transcriber
	ocr         OCRReader
	logger      *zap.Logger
}

// NewFileIngestor creates a file ingestor. extractor is required; transcriber
// and ocr may be nil to disable audio and image ingestion.
func NewFileIngestor(ingestor *Ingestor, extractor TextExtractor, transcriber Transcriber, ocr OCRReader, logger *zap.Logger) *FileIngestor {
	return &FileIngestor{
		ingestor:    ingestor,
		extractor:   extractor,
		transcriber: transcriber,
		ocr:         ocr,
		logger:      logger,
	}
}

var audioExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".flac": true, ".ogg": true}
var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".bmp": true}

// DocTypeForPath returns the document type a file path will be ingested as.
func DocTypeForPath(path string) models.DocumentType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return models.DocumentTypePDF
	case audioExts[ext]:
		return models.DocumentTypeAudio
	case imageExts[ext]:
		return models.DocumentTypeImage
	default:
		return models.DocumentTypeText
	}
}

// IngestFile extracts text from the file at path and ingests it. The document
// id is derived from the absolute path; a file that was already ingested is
// skipped (documents are immutable, so there is nothing to update).
func (fi *FileIngestor) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	docID := fileid.FileDocID(absPath)
	if existing, err := fi.ingestor.store.GetDocument(ctx, docID); err == nil {
		if fi.logger != nil {
			fi.logger.Debug("skipping already ingested file", zap.String("path", absPath), zap.String("doc_id", existing.ID))
		}
		chunks, err := fi.ingestor.store.GetChunksByDocumentID(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("get chunks for existing document: %w", err)
		}
		return &models.IngestResult{DocID: docID, ChunkCount: len(chunks)}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up document: %w", err)
	}

	docType := DocTypeForPath(absPath)
	text, err := fi.extractText(ctx, absPath, docType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:       docID,
		Filename: filepath.Base(absPath),
		Type:     docType,
		Source:   "file",
		Extra:    map[string]interface{}{"path": absPath},
	}
	return fi.ingestor.ingestDocument(ctx, doc, text)
}

func (fi *FileIngestor) extractText(ctx context.Context, absPath string, docType models.DocumentType) (string, error) {
	switch docType {
	case models.DocumentTypeAudio:
		if fi.transcriber == nil {
			return "", fmt.Errorf("audio ingestion disabled: no transcriber configured")
		}
		text, err := fi.transcriber.Transcribe(ctx, absPath)
		if err != nil {
			return "", fmt.Errorf("transcribe audio: %w", err)
		}
		return text, nil
	case models.DocumentTypeImage:
		if fi.ocr == nil {
			return "", fmt.Errorf("image ingestion disabled: no OCR reader configured")
		}
		text, err := fi.ocr.ReadText(ctx, absPath)
		if err != nil {
			return "", fmt.Errorf("OCR image: %w", err)
		}
		return text, nil
	default:
		text, err := fi.extractor.Extract(absPath)
		if err != nil {
			return "", fmt.Errorf("extract content: %w", err)
		}
		return text, nil
	}
}
