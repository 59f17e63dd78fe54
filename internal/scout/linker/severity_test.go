package linker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/linker"
)

func TestInferSeverity_NeverDeescalates(t *testing.T) {
	got := linker.InferSeverity(domain.TensionSeverityCritical, 0, 0)
	assert.Equal(t, domain.TensionSeverityCritical, got)
}

func TestInferSeverity_EscalatesOnCorroboration(t *testing.T) {
	got := linker.InferSeverity(domain.TensionSeverityLow, 5, 0)
	assert.Equal(t, domain.TensionSeverityCritical, got)

	got = linker.InferSeverity(domain.TensionSeverityLow, 0, 2)
	assert.Equal(t, domain.TensionSeverityModerate, got)
}
