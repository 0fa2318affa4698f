// Package evidence приводит вложения к единому виду при записи.
package evidence

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// MaxDecodedSize предел размера одного вложения после декодирования.
const MaxDecodedSize = 10 << 20

const maxFilenameLength = 255

const defaultMIME = "application/octet-stream"

// Normalize проверяет вложения и определяет их тип по содержимому.
// Результат сохраняется как есть и при чтении повторно не разбирается.
func Normalize(items []models.Evidence) (models.EvidenceList, error) {
	if len(items) > validation.MaxEvidenceItems {
		return nil, fmt.Errorf("не более %d вложений", validation.MaxEvidenceItems)
	}

	out := make(models.EvidenceList, 0, len(items))
	for i, item := range items {
		normalized, err := normalizeOne(item)
		if err != nil {
			return nil, fmt.Errorf("вложение %d: %w", i+1, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeOne(item models.Evidence) (models.Evidence, error) {
	content := strings.TrimSpace(item.Content)
	if content == "" {
		return models.Evidence{}, fmt.Errorf("пустое содержимое")
	}

	switch item.Kind {
	case "", models.EvidenceImage, models.EvidenceFile, models.EvidenceLink:
	default:
		return models.Evidence{}, fmt.Errorf("неизвестный тип вложения %q, допустимы image, file, link", item.Kind)
	}

	filename := strings.TrimSpace(item.Filename)
	if err := validation.ValidateLength("имя файла", filename, 0, maxFilenameLength); err != nil {
		return models.Evidence{}, err
	}

	if item.Kind == models.EvidenceLink || isHTTPURL(content) {
		if err := validation.ValidateExternalLink(content); err != nil {
			return models.Evidence{}, err
		}
		return models.Evidence{Kind: models.EvidenceLink, Content: content, Filename: filename}, nil
	}

	declaredMIME := strings.TrimSpace(item.MIME)
	payload := content
	if strings.HasPrefix(content, "data:") {
		header, data, ok := strings.Cut(content[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return models.Evidence{}, fmt.Errorf("поддерживаются только data URL в base64")
		}
		if mime := strings.TrimSuffix(header, ";base64"); mime != "" {
			declaredMIME = mime
		}
		payload = data
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxDecodedSize+2 {
		return models.Evidence{}, fmt.Errorf("вложение больше %d байт", MaxDecodedSize)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("вложение должно быть http(s) ссылкой или base64")
	}
	if len(raw) == 0 {
		return models.Evidence{}, fmt.Errorf("пустое содержимое")
	}
	if len(raw) > MaxDecodedSize {
		return models.Evidence{}, fmt.Errorf("вложение больше %d байт", MaxDecodedSize)
	}

	return models.Evidence{
		Kind:     kindOf(raw),
		Content:  payload,
		Filename: filename,
		MIME:     mimeOf(raw, declaredMIME),
	}, nil
}

func kindOf(raw []byte) string {
	if filetype.IsImage(raw) {
		return models.EvidenceImage
	}
	return models.EvidenceFile
}

// mimeOf доверяет сигнатуре файла больше, чем заявленному типу.
func mimeOf(raw []byte, declared string) string {
	kind, err := filetype.Match(raw)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if declared != "" && !strings.HasPrefix(declared, "image/") {
		return declared
	}
	return defaultMIME
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
