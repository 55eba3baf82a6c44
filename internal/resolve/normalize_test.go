package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Uppercase(t *testing.T) {
	assert.Equal(t, "SHARMA TRADERS", NormalizeName("Sharma Traders"))
}

func TestNormalizeName_StripSuffix(t *testing.T) {
	assert.Equal(t, "SHARMA TRADERS", NormalizeName("Sharma Traders Pvt Ltd"))
	assert.Equal(t, "SHARMA TRADERS", NormalizeName("Sharma Traders Pvt. Ltd."))
	assert.Equal(t, "SHARMA TRADERS", NormalizeName("Sharma Traders Private Limited"))
	assert.Equal(t, "PATIL", NormalizeName("Patil & Co"))
	assert.Equal(t, "GANESH BUILDCON", NormalizeName("Ganesh Buildcon LLP"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "SHREE GANESH HARDWARE", NormalizeName("Shree-Ganesh   Hardware"))
	assert.Equal(t, "SMITH AND JONES", NormalizeName("Smith & Jones,"))
	assert.Equal(t, "JOES STORE", NormalizeName("Joe's Store"))
}

func TestNormalizeName_FoldsAccents(t *testing.T) {
	assert.Equal(t, "CAFE DECO", NormalizeName("Café Déco"))
}

func TestSortedTokens(t *testing.T) {
	assert.Equal(t, "SHARMA TRADERS", sortedTokens("traders SHARMA"))
}
