package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0x1234567890123456789012345678901234567890"))
	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("0x123"))
	assert.Error(t, ValidateAddress("1234567890123456789012345678901234567890"))
}

func TestValidateTxHash(t *testing.T) {
	assert.NoError(t, ValidateTxHash("0x1234567890123456789012345678901234567890123456789012345678901234"))
	assert.Error(t, ValidateTxHash(""))
	assert.Error(t, ValidateTxHash("0x1234"))
	assert.Error(t, ValidateTxHash("0xzz34567890123456789012345678901234567890123456789012345678901234"))
}
