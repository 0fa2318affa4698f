package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateExternalLink(t *testing.T) {
	assert.NoError(t, ValidateExternalLink("https://example.com/result.png"))
	assert.NoError(t, ValidateExternalLink(" http://example.com "))

	assert.Error(t, ValidateExternalLink(""))
	assert.Error(t, ValidateExternalLink("ftp://example.com/file"))
	assert.Error(t, ValidateExternalLink("/relative/path"))
	assert.Error(t, ValidateExternalLink("https://"))
}

func TestValidateRequiredText(t *testing.T) {
	assert.Error(t, ValidateRequiredText("причина", "   ", 10))
	assert.Error(t, ValidateRequiredText("причина", strings.Repeat("я", 11), 10))
	assert.NoError(t, ValidateRequiredText("причина", "не то", 10))
}

func TestValidatePercentAndDays(t *testing.T) {
	assert.NoError(t, ValidatePercent("доля", 0))
	assert.NoError(t, ValidatePercent("доля", 100))
	assert.Error(t, ValidatePercent("доля", 101))
	assert.Error(t, ValidatePercent("доля", -1))

	assert.NoError(t, ValidateDeliveryDays(3))
	assert.Error(t, ValidateDeliveryDays(0))
}
