package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxRequirementsLength    = 5000
	MaxDeliveryMessageLength = 5000
	MaxReasonLength          = 1000
	MaxDetailsLength         = 5000
	MaxNotesLength           = 2000
	MinWorkProofTitleLength  = 3
	MaxWorkProofTitleLength  = 200
	MaxWorkProofDescLength   = 5000
	MaxExternalLinkLength    = 2000
	MaxExternalRefLength     = 200
	MaxDeliveryDays          = 365
	MaxEvidenceItems         = 20
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая после обрезки пробелов.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s обязательно", fieldName)
	}
	return nil
}

// ValidateRequiredText обязательный текст с ограничением длины.
func ValidateRequiredText(fieldName, value string, max int) error {
	if err := ValidateNonEmpty(fieldName, value); err != nil {
		return err
	}
	return ValidateLength(fieldName, strings.TrimSpace(value), 0, max)
}

// ValidateWorkProofTitle проверяет заголовок отчёта.
func ValidateWorkProofTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок отчёта обязателен")
	}
	return ValidateLength("заголовок отчёта", title, MinWorkProofTitleLength, MaxWorkProofTitleLength)
}

// ValidateDeliveryDays проверяет срок выполнения заказа.
func ValidateDeliveryDays(days int) error {
	if days < 1 || days > MaxDeliveryDays {
		return fmt.Errorf("срок выполнения должен быть от 1 до %d дней", MaxDeliveryDays)
	}
	return nil
}

// ValidatePercent проверяет процент 0..100.
func ValidatePercent(fieldName string, pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%s должен быть от 0 до 100", fieldName)
	}
	return nil
}

// ValidateExternalLink проверяет внешнюю ссылку.
func ValidateExternalLink(link string) error {
	linkStr := strings.TrimSpace(link)
	if linkStr == "" {
		return fmt.Errorf("ссылка не может быть пустой")
	}

	if err := ValidateLength("внешняя ссылка", linkStr, 0, MaxExternalLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(linkStr)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}
